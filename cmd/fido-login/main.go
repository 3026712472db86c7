// fido-login exchanges credentials for a bearer token and prints an export
// line for EXPENSE_API_TOKEN. The password is read from the terminal, never
// from argv, so it stays out of shell history and process listings.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"fido/internal/auth"
)

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("EXPENSE_API_URL")
	if baseURL == "" {
		log.Fatal("set EXPENSE_API_URL")
	}

	email := os.Getenv("EXPENSE_API_EMAIL")
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("read email: %v", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}

	client, err := auth.NewClient(baseURL, 15*time.Second)
	if err != nil {
		log.Fatalf("init login client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Login(ctx, email, string(password))
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Logged in as %s <%s>\n", result.User.Name, result.User.Email)
	fmt.Printf("export EXPENSE_API_TOKEN=%s\n", result.Token)
}
