// Command memra compiles entity definitions into statements, handlers and
// routes, and serves them.
package main

import "github.com/marshallshelly/memra/cmd/memra/commands"

func main() {
	commands.Execute()
}
