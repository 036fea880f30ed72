package cmd

import (
	"fmt"
	"strings"
)

// confirm prompts the user with a yes/no question, grounded on the
// teacher's promptForUpdates Scanln loop, trimmed to a single y/n answer.
// Defaults to "no" on anything but an explicit y/yes.
func confirm(prompt string) bool {
	fmt.Printf("%s (y/N): ", prompt)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
