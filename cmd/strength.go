/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dekyc/apiserver/internal/strength"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var (
	strengthPassword string
	strengthJSON     bool
)

// strengthCmd scores a password the way the registration meter does.
var strengthCmd = &cobra.Command{
	Use:   "strength",
	Short: "Score a password from 0 to 5",
	Long: `Scores a password the way the registration page meter does. The
password is read from the terminal without echo, from standard input when it
is not a terminal, or from --password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword(cmd)
		if err != nil {
			return err
		}
		return printStrength(cmd.OutOrStdout(), strength.Evaluate(password), strengthJSON)
	},
}

func init() {
	rootCmd.AddCommand(strengthCmd)
	strengthCmd.Flags().StringVarP(&strengthPassword, "password", "p", "", "password to score (visible in shell history)")
	strengthCmd.Flags().BoolVar(&strengthJSON, "json", false, "print the result as JSON")
}

func promptPassword(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return strengthPassword, nil
	}

	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
		pw, err := readPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printStrength(w io.Writer, result strength.Result, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(result)
	}
	meter := strings.Repeat("#", result.Score) + strings.Repeat(".", strength.MaxScore-result.Score)
	_, err := fmt.Fprintf(w, "[%s] %d/%d %s (%d%%)\n", meter, result.Score, strength.MaxScore, result.Label, result.Percent)
	return err
}
