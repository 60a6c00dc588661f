package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed lists the accounts created on first start, when the store holds no admin.
//
//	users:
//	  - login: alice
//	    display_name: Alice
//	    role: admin
//	    password: change-me-now
type Seed struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser is one account of the seed file.
type SeedUser struct {
	Login       string `yaml:"login"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role"`
	Password    string `yaml:"password"`
}

// LoadSeed reads and decodes a seed file. Unknown keys are rejected.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return &seed, nil
}
