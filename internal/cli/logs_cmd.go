package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// logsCmd represents the logs command group
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Access log management",
}

// logsClearCmd truncates the access log after confirmation
var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Truncate the access log",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("This truncates %s. Continue? (yes/no): ", logs.Path())
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

		if err := logs.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to clear logs: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logs cleared.")
	},
}

func init() {
	logsCmd.AddCommand(logsClearCmd)
}
