package dpo

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed result_codes.yaml
var resultCodesYAML []byte

// Result categories
const (
	CategorySuccess       = "success"
	CategoryPending       = "pending"
	CategoryDeclined      = "declined"
	CategoryMerchantError = "merchant_error"
	CategoryUnknown       = "unknown"
)

// ResultCodeInfo describes one API3G result code
type ResultCodeInfo struct {
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

// ResultCodeTable maps result codes per request type
type ResultCodeTable struct {
	CreateToken map[string]ResultCodeInfo `yaml:"createToken"`
	VerifyToken map[string]ResultCodeInfo `yaml:"verifyToken"`
}

var resultCodes = mustLoadResultCodes(resultCodesYAML)

func mustLoadResultCodes(data []byte) *ResultCodeTable {
	table, err := parseResultCodes(data)
	if err != nil {
		panic(err)
	}
	return table
}

func parseResultCodes(data []byte) (*ResultCodeTable, error) {
	var table ResultCodeTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse result codes: %w", err)
	}
	if len(table.CreateToken) == 0 || len(table.VerifyToken) == 0 {
		return nil, fmt.Errorf("result code table is missing createToken or verifyToken entries")
	}
	return &table, nil
}

// LookupResultCode returns the info for a code of the given request type
func LookupResultCode(request, code string) (ResultCodeInfo, bool) {
	var codes map[string]ResultCodeInfo
	switch request {
	case requestCreateToken:
		codes = resultCodes.CreateToken
	case requestVerifyToken:
		codes = resultCodes.VerifyToken
	}
	info, ok := codes[code]
	return info, ok
}

// ResultCategory returns the category for a code, or CategoryUnknown
func ResultCategory(request, code string) string {
	if info, ok := LookupResultCode(request, code); ok {
		return info.Category
	}
	return CategoryUnknown
}
