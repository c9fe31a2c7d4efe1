package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/errors"
)

// d2InstallCommand is the upstream install script invocation.
const d2InstallCommand = "curl -fsSL https://d2lang.com/install.sh | sh -s --"

// doctorCommand creates the doctor command, which checks that the renderer
// can run before a build turns every diagram into an error box.
func (c *CLI) doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the d2 renderer and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cmdOpts := c.Config.CommandOptions()
			cmdOpts.Logger = c.Logger
			renderer := d2.NewCommand(cmdOpts)

			c.printTitle("d2site doctor")
			c.printKeyValue("language", c.Config.D2.Language)
			c.printKeyValue("theme", strconv.Itoa(renderer.Theme()))
			c.printKeyValue("pad", strconv.Itoa(renderer.Pad()))
			c.printKeyValue("scratch", renderer.ScratchDir())
			c.printKeyValue("cache", c.Config.Cache.Backend)
			c.printNewline()

			bin, err := renderer.LookPath()
			if err != nil {
				c.printError("%s", errors.UserMessage(err))
				c.printNextStep("Install d2", d2InstallCommand)
				return err
			}
			c.printSuccess("Found %s", bin)

			version, err := renderer.Version(ctx)
			if err != nil {
				c.printError("%s", errors.UserMessage(err))
				return err
			}
			c.printSuccess("d2 %s", version)

			svg, err := renderer.Render(ctx, []byte("doctor -> ok"))
			if err != nil {
				c.printError("Test render failed: %s", errors.UserMessage(err))
				return err
			}
			c.printSuccess("Test render produced %s", StyleNumber.Render(fmt.Sprintf("%d bytes", len(svg))))

			if _, err := os.Stat(c.Config.Build.ContentDir); err != nil {
				c.printWarning("Content directory %s not found", c.Config.Build.ContentDir)
			}
			return nil
		},
	}
}
