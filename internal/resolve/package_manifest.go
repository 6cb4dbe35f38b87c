package resolve

import (
	"encoding/json"
	"os"
)

type packageEntryFields struct {
	Source string
	Main   string
	Module string
	Types  string
}

func readPackageEntryFields(manifestPath string) (packageEntryFields, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return packageEntryFields{}, err
	}

	var pkg struct {
		Source string `json:"source"`
		Main   string `json:"main"`
		Module string `json:"module"`
		Types  string `json:"types"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return packageEntryFields{}, err
	}

	return packageEntryFields{Source: pkg.Source, Main: pkg.Main, Module: pkg.Module, Types: pkg.Types}, nil
}
