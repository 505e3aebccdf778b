package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tascaenzo/trinacria/app"
	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/examples/userapi"
	"github.com/tascaenzo/trinacria/examples/userapi/users"
	"github.com/tascaenzo/trinacria/module"
)

var (
	graphOutput string
	graphLint   bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the user API module graph",
	Long: `Build the user API module definitions without starting the
application and print the resulting module graph. With --lint, report
structural findings instead.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "json", "output format (json, yaml)")
	graphCmd.Flags().BoolVar(&graphLint, "lint", false, "report structural findings instead of the graph")
}

func runGraph(cmd *cobra.Command, args []string) error {
	reg := module.NewRegistry()
	// The modules expect the application logger global; provide a nop
	// since nothing is initialized here.
	if err := reg.RegisterGlobal(di.Value(app.LoggerToken, zap.NewNop(), di.External())); err != nil {
		return err
	}
	for _, def := range userapi.Modules(cfg, users.NewMemoryStore()) {
		if _, err := reg.Build(def); err != nil {
			return fmt.Errorf("failed to build module %s: %w", def.Name(), err)
		}
	}
	g := reg.Graph()

	if graphLint {
		issues := module.Lint(g)
		if len(issues) == 0 {
			fmt.Println("no findings")
			return nil
		}
		for _, issue := range issues {
			fmt.Println(issue.String())
		}
		return nil
	}

	switch graphOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(g)
	default:
		return fmt.Errorf("unknown output format: %s", graphOutput)
	}
}
