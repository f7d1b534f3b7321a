package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Account management",
	Long:  `Manage accounts: create, list, and reset passwords.`,
}

// userCreateCmd creates a new account interactively
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	Run: func(cmd *cobra.Command, args []string) {
		if db == nil {
			fmt.Fprintln(os.Stderr, "error: database unavailable")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Print("Email: ")
		email, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		email = strings.TrimSpace(email)
		if email == "" {
			fmt.Fprintln(os.Stderr, "error: email must not be empty")
			os.Exit(1)
		}

		fmt.Print("Name: ")
		name, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		name = strings.TrimSpace(name)

		fmt.Print("Password (at least 6 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		password := string(passwordBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if password != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "error: passwords do not match")
			os.Exit(1)
		}

		user, err := userService.Register(email, name, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to create account: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Printf("Account created: %s (id %d)\n", user.Email, user.ID)
		fmt.Println("API key:")
		fmt.Println(user.APIKey)
	},
}

// userListCmd lists all accounts
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Run: func(cmd *cobra.Command, args []string) {
		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to list accounts: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No accounts.")
			return
		}

		fmt.Printf("%-5s %-30s %-20s %-8s %s\n", "ID", "EMAIL", "NAME", "ACTIVE", "LOGINS")
		for _, u := range users {
			fmt.Printf("%-5d %-30s %-20s %-8v %d\n", u.ID, u.Email, u.Name, u.IsActive, u.LoginCount)
		}
	},
}

// userResetPwdCmd resets an account password by user id
var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd <user-id>",
	Short: "Reset an account password",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid user id: %s\n", args[0])
			os.Exit(1)
		}

		fmt.Print("New password (at least 6 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()

		if err := userService.ResetPassword(uint(id), string(passwordBytes)); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to reset password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Password reset.")
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetPwdCmd)
}
