// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/cmd/cloudcontrol/commands"

func main() {
	commands.Execute()
}
