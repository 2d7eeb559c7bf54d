// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/remcon/remcon/cmd/remcon"

func main() {
	cmd.Execute()
}
