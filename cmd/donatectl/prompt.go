package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/kevin07696/donation-service/internal/domain"
)

const customAmount = "Other amount"

// promptAmount lets the operator pick a preset or type an amount
func promptAmount(presets []string, currency string) (string, error) {
	items := make([]string, 0, len(presets)+1)
	for _, p := range presets {
		items = append(items, p+" "+currency)
	}
	items = append(items, customAmount)

	sel := promptui.Select{
		Label: "Donation amount",
		Items: items,
		Size:  min(8, len(items)),
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}?",
			Active:   `{{ "›" | cyan }} {{ . | cyan }}`,
			Inactive: `  {{ . }}`,
			Selected: `{{ "✔" | green }} {{ . | green }}`,
		},
	}

	index, _, err := sel.Run()
	if err != nil {
		return "", promptError(err)
	}
	if index < len(presets) {
		return presets[index], nil
	}

	input := promptui.Prompt{
		Label: fmt.Sprintf("Amount (%s)", currency),
		Validate: func(s string) error {
			_, err := domain.ParseAmount(s)
			return err
		},
	}
	amount, err := input.Run()
	if err != nil {
		return "", promptError(err)
	}
	return amount, nil
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return errors.New("cancelled")
	}
	return err
}
