package cmd

import (
	"fmt"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [token]",
	Short: "Generate an argon2id hash for an admin bearer token",
	Long: `Generate an argon2id hash of an admin bearer token for use in config.

The output is the raw argon2id encoded hash, the form the admin handler's
WithTokenHash option checks bearer tokens against. No config field carries
it: "botwaf server" builds the admin API without a token hash, so only
localhost requests reach it.

Example:
  botwaf hash-key "my-admin-token"

Security note: the token will appear in shell history. Consider clearing
history after use, or pass it via an environment variable expansion.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := argon2id.CreateHash(args[0], argon2id.DefaultParams)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		fmt.Fprintln(os.Stdout, hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
