// Package configs embeds the annotated configuration template written by
// `vecbench config init`.
//
// The same template serves the user config (~/.config/vecbench/config.yaml)
// and the project config (.vecbench.yaml). Every key is commented out so a
// fresh file changes nothing until edited.
package configs

import _ "embed"

// ConfigTemplate is the annotated vecbench configuration.
//
//go:embed vecbench.example.yaml
var ConfigTemplate string
