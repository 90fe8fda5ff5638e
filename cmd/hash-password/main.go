// Command hash-password prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/service"
	"golang.org/x/term"
)

func main() {
	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Generate Admin Password Hash ===")

	fmt.Print("Enter Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil || string(confirm) != string(password) {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	hash, err := authService.HashPassword(string(password))
	if err != nil {
		fmt.Printf("Error hashing password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}
