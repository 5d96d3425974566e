package main

import (
	"fmt"
	"io"

	"shift_attendance_bot/internal/infra/policyfile"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Escalation policy utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML policy file and print its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePolicyFile(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}

func validatePolicyFile(out io.Writer, path string) error {
	policies, err := policyfile.LoadFile(path)
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("INVALID"), path)
		return err
	}

	fmt.Fprintf(out, "%s %s (%d policies)\n", color.New(color.FgGreen).Sprint("OK"), path, len(policies))
	for _, p := range policies {
		fmt.Fprintf(out, "\n%s  %s\n", color.New(color.Bold).Sprint(p.ID), p.Name)
		for i, st := range p.Stages {
			fmt.Fprintf(out, "  [%d] wait %3dm  %-5s -> %s\n", i, st.WaitMinutes, st.Channel, st.RecipientRule)
		}
	}
	return nil
}
