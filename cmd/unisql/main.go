// Command unisql manages a set of SQLite databases described by YAML
// schema files: initializing them, inspecting them, and moving rows in
// and out.
package main

import "github.com/mesh-intelligence/unisql/internal/cli"

func main() {
	cli.Execute()
}
