package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errBadFamily = errors.New("family must be video or audio")

func validFamily(s string) bool {
	return s == "video" || s == "audio"
}

// newDevicesCmd manages the OS-level virtual devices directly.
func newDevicesCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Set up, tear down and inspect the virtual devices",
	}

	setup := &cobra.Command{
		Use:   "setup [video|audio]",
		Short: "Create and verify the virtual devices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				if !validFamily(args[0]) {
					return fmt.Errorf("%w: %q", errBadFamily, args[0])
				}
				return a.sup.SetupFamily(cmd.Context(), args[0])
			}
			res := a.sup.SetupAll(cmd.Context())
			if !res.AllOK() {
				return errors.Join(res.VideoErr, res.AudioErr)
			}
			return nil
		},
	}

	teardown := &cobra.Command{
		Use:   "teardown [video|audio]",
		Short: "Release the virtual devices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				if !validFamily(args[0]) {
					return fmt.Errorf("%w: %q", errBadFamily, args[0])
				}
				a.sup.TeardownFamily(cmd.Context(), args[0])
				return nil
			}
			a.sup.TeardownAll(cmd.Context())
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show device state as seen by the guard and by the OS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			for _, st := range a.sup.Status(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-24s setup=%-5t present=%t\n",
					st.Family, st.Identity, st.Setup, st.Present)
			}
			return nil
		},
	}

	cmd.AddCommand(setup, teardown, status)
	return cmd
}
