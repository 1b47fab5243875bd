package cmd

import (
	"fmt"
	"strconv"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/projects"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/spf13/cobra"
)

var (
	projectOutput string
	projectInput  types.ProjectInput
)

// projectCmd groups project operations
var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects"},
	Short:   "Manage projects",
	Long: `Projects group mock rules and carry the public base URL used when
copying a rule's URL. Names are stored lowercase and must be unique.

Examples:
  hcctl project list
  hcctl project create --name billing --base-url https://mock.example.com
  hcctl project update 3 --description "payment mocks"
  hcctl project delete 3`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		manager := projects.New(projects.Config{API: GetAPIClient()})
		if err := manager.Load(ctx); err != nil {
			return fmt.Errorf("failed to list projects: %s", client.ErrorText(err))
		}
		if done, err := writeStructured(cmd.OutOrStdout(), projectOutput, manager.List()); done {
			return err
		}
		return manager.Render(cmd.OutOrStdout())
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		manager := projects.New(projects.Config{API: GetAPIClient()})
		project, err := manager.Create(ctx, projectInput)
		if err != nil {
			return fmt.Errorf("failed to create project: %s", client.ErrorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %q created (id %d)\n", project.Name, project.ID)
		return nil
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update PROJECT_ID",
	Short: "Change a project's name, description or base URL",
	Long: `Update sends the project's current values with only the flags given on
the command line replaced, so omitted fields keep their values.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		manager := projects.New(projects.Config{API: GetAPIClient()})
		if err := manager.Load(ctx); err != nil {
			return fmt.Errorf("failed to load projects: %s", client.ErrorText(err))
		}
		current, ok := manager.Find(id)
		if !ok {
			return fmt.Errorf("project %d not found", id)
		}
		project, err := manager.Update(ctx, id, mergeProjectInput(cmd, current))
		if err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("project %d not found", id)
			}
			return fmt.Errorf("failed to update project: %s", client.ErrorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %q updated\n", project.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete PROJECT_ID",
	Short: "Delete a project and all of its rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		manager := projects.New(projects.Config{API: GetAPIClient(), Confirmer: newPrompter(cmd)})
		if err := manager.Load(ctx); err != nil {
			return fmt.Errorf("failed to load projects: %s", client.ErrorText(err))
		}
		deleted, err := manager.Delete(ctx, id)
		if err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("project %d not found", id)
			}
			return fmt.Errorf("failed to delete project: %s", client.ErrorText(err))
		}
		if !deleted {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %d deleted\n", id)
		return nil
	},
}

// mergeProjectInput starts from current and applies the flags the user set.
func mergeProjectInput(cmd *cobra.Command, current types.Project) types.ProjectInput {
	input := types.ProjectInput{
		Name:        current.Name,
		Description: current.Description,
		BaseURL:     current.BaseURL,
	}
	flags := cmd.Flags()
	if flags.Changed("name") {
		input.Name = projectInput.Name
	}
	if flags.Changed("description") {
		input.Description = projectInput.Description
	}
	if flags.Changed("base-url") {
		input.BaseURL = projectInput.BaseURL
	}
	return input
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func init() {
	projectListCmd.Flags().StringVarP(&projectOutput, "output", "o", formatTable, "Output format: table, yaml, json")

	for _, c := range []*cobra.Command{projectCreateCmd, projectUpdateCmd} {
		c.Flags().StringVar(&projectInput.Name, "name", "", "Project name (stored lowercase)")
		c.Flags().StringVar(&projectInput.Description, "description", "", "Project description")
		c.Flags().StringVar(&projectInput.BaseURL, "base-url", "", "Public base URL of the mocked API")
	}
	projectCreateCmd.MarkFlagRequired("name")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}
