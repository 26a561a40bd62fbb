package utils

import (
	"fmt"
)

// DisplayLogo prints the rtconfigd banner with version information
func DisplayLogo(version string) {
	fmt.Println()
	fmt.Println(` ░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░
 ░█▀▄░▀█▀░█▀▀░█▀█░█▀█░█▀▀░▀█▀░█▀▀░
 ░█▀▄░░█░░█░░░█░█░█░█░█▀▀░░█░░█░█░
 ░▀░▀░░▀░░▀▀▀░▀▀▀░▀░▀░▀░░░▀▀▀░▀▀▀░
 ░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░`)
	fmt.Printf("\n rtconfigd v%s - Embedded Controller Configuration Service\n", version)
	fmt.Println()
}
