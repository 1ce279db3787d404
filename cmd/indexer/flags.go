package main

import (
	"fmt"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func bindFlag(f *pflag.Flag) {
	if f.Name == "config" {
		return
	}
	if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
		fmt.Printf("Failed to bind flag '%s': %+v\n", f.Name, err)
	}
}
