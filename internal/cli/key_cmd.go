package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// keyCmd represents the key command group
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "API key management",
	Long:  `Manage per-account API keys.`,
}

// keyShowCmd shows an account's current API key
var keyShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show an account's API key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid user id: %s\n", args[0])
			os.Exit(1)
		}

		user, err := userService.GetByID(uint(id))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if user.APIKey == "" {
			fmt.Println("No API key issued.")
			return
		}
		fmt.Println(user.APIKey)
	},
}

// keyRotateCmd replaces an account's API key after confirmation
var keyRotateCmd = &cobra.Command{
	Use:   "rotate <user-id>",
	Short: "Rotate an account's API key",
	Long:  `Generate a new API key for the account. The old key stops working immediately.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid user id: %s\n", args[0])
			os.Exit(1)
		}

		fmt.Print("Clients using the old key will lose access. Rotate? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		input = strings.TrimSpace(strings.ToLower(input))
		if input != "yes" && input != "y" {
			fmt.Println("Cancelled.")
			return
		}

		apiKey, err := userService.RegenerateAPIKey(uint(id))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to rotate API key: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("New API key:")
		fmt.Println(apiKey)
	},
}

func init() {
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyRotateCmd)
}
