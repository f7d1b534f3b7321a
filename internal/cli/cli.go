package cli

import (
	"os"

	"github.com/CodeXGautam/mail-tracker/internal/config"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	cfg         *config.Config
	logs        *logstore.Store
	userService *services.UserService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mail-tracker",
	Short: "Email open-tracking backend",
	Long: `mail-tracker serves the tracking pixel, records access events,
and manages tracked-email records and accounts.

Admin commands:
  mail-tracker user create       create a new account interactively
  mail-tracker user list         list all accounts
  mail-tracker user reset-pwd    reset an account password
  mail-tracker key rotate        rotate an account's API key
  mail-tracker logs clear        truncate the access log`,
}

// Execute runs the CLI with the provided database, config, and log store
func Execute(database *gorm.DB, configuration *config.Config, logStore *logstore.Store) {
	db = database
	cfg = configuration
	logs = logStore
	userService = services.NewUserService(db, logs, nil)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(logsCmd)
}
