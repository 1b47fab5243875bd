package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/editor"
	"github.com/QTuan97/HC-API-Plat/cli/projects"
	"github.com/QTuan97/HC-API-Plat/cli/rulelist"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/spf13/cobra"
)

var (
	ruleProjectID int64
	ruleAll       bool
	ruleOutput    string
	ruleFilename  string
)

// ruleCmd groups rule operations
var ruleCmd = &cobra.Command{
	Use:     "rule",
	Aliases: []string{"rules"},
	Short:   "Manage mock rules",
	Long: `Rules match a method and a path regex and answer with either one fixed
response or one of up to four weighted responses. Rules are addressed inside
a project (--project) or through the flat collection (--all).

Examples:
  hcctl rule list --project 1
  hcctl rule list --all
  hcctl rule create --project 1 -f rule.yaml
  hcctl rule edit --project 1 7
  hcctl rule toggle --project 1 7
  hcctl rule copy --project 1 7`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// ruleScope resolves --project and --all into a collection.
func ruleScope() (client.RuleScope, error) {
	if ruleAll {
		return client.FlatScope(ruleProjectID), nil
	}
	if ruleProjectID <= 0 {
		return client.RuleScope{}, errors.New("--project is required (or use --all)")
	}
	return client.ProjectScope(ruleProjectID), nil
}

// loadRules builds a rule list for the command's scope and loads it.
func loadRules(cmd *cobra.Command, cfg rulelist.Config) (*rulelist.List, error) {
	scope, err := ruleScope()
	if err != nil {
		return nil, err
	}
	cfg.API = GetAPIClient()
	cfg.Scope = scope
	p := newPrompter(cmd)
	if cfg.Confirmer == nil {
		cfg.Confirmer = p
	}
	if cfg.Notifier == nil {
		cfg.Notifier = p
	}

	list := rulelist.New(cfg)
	ctx, cancel := requestContext(cmd)
	defer cancel()
	if err := list.Load(ctx, 0); err != nil {
		return nil, fmt.Errorf("failed to list rules: %s", client.ErrorText(err))
	}
	return list, nil
}

func findRule(list *rulelist.List, id int64) (types.Rule, error) {
	for _, r := range list.Rules() {
		if r.ID == id {
			return r, nil
		}
	}
	return types.Rule{}, fmt.Errorf("rule %d not found", id)
}

// ruleErr turns an action error into the message shown to the user.
func ruleErr(action string, id int64, err error) error {
	if client.IsNotFound(err) || errors.Is(err, rulelist.ErrRuleNotLoaded) {
		return fmt.Errorf("rule %d not found", id)
	}
	if editor.IsValidationError(err) {
		return err
	}
	return fmt.Errorf("failed to %s rule: %s", action, client.ErrorText(err))
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rules of a project, or every rule with --all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := loadRules(cmd, rulelist.Config{})
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), ruleOutput, list.Rules()); done {
			return err
		}
		return list.Render(cmd.OutOrStdout())
	},
}

var ruleShowCmd = &cobra.Command{
	Use:   "show RULE_ID",
	Short: "Show one rule with its request body, headers and body template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		list, err := loadRules(cmd, rulelist.Config{})
		if err != nil {
			return err
		}
		rule, err := findRule(list, id)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), ruleOutput, rule); done {
			return err
		}
		return list.Details(cmd.OutOrStdout(), id)
	},
}

var ruleCreateCmd = &cobra.Command{
	Use:   "create -f FILE",
	Short: "Create a rule from a YAML or JSON file",
	Long: `Create reads a rule file and posts it. Weighted rules list their
entries; the weights must add up to 100.

Example file:
  method: POST
  path_regex: ^/pay$
  request_body: '{"amount": 10}'
  response_type: weighted
  entries:
    - weight: 90
      status_code: 200
      template: '{"ok": true}'
    - weight: 10
      status_code: 500
      delay: 300`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ruleScope()
		if err != nil {
			return err
		}
		if scope.Flat && scope.ProjectID <= 0 {
			return errors.New("--project is required to create a rule")
		}
		form, err := readRuleFile(ruleFilename)
		if err != nil {
			return err
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()

		e := editor.New(editor.Config{API: GetAPIClient(), Scope: scope})
		rule, err := e.Create(ctx, form)
		if err != nil {
			if editor.IsValidationError(err) {
				return err
			}
			return fmt.Errorf("failed to create rule: %s", client.ErrorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rule %d created (%s %s)\n", rule.ID, rule.Method, rule.PathRegex)

		// Show the owning project's rules with the new one highlighted
		projectID := rule.ProjectID
		if projectID == 0 {
			projectID = scope.ProjectID
		}
		list := rulelist.New(rulelist.Config{API: GetAPIClient(), Scope: client.ProjectScope(projectID)})
		if err := list.Load(ctx, rule.ID); err != nil {
			return fmt.Errorf("failed to list rules: %s", client.ErrorText(err))
		}
		return list.Render(cmd.OutOrStdout())
	},
}

var ruleEditCmd = &cobra.Command{
	Use:   "edit RULE_ID",
	Short: "Edit a rule in $EDITOR, or replace it from a file with -f",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		edit := editInEditor(cmd)
		if ruleFilename != "" {
			edit = func(*editor.Form) (*editor.Form, error) {
				return readRuleFile(ruleFilename)
			}
		}

		list, err := loadRules(cmd, rulelist.Config{Edit: edit})
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := list.Do(ctx, rulelist.ActionEdit, id); err != nil {
			return ruleErr("update", id, err)
		}
		return nil
	},
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete RULE_ID",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRuleAction(cmd, args, rulelist.ActionDelete, "delete")
	},
}

var ruleToggleCmd = &cobra.Command{
	Use:   "toggle RULE_ID",
	Short: "Enable or disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRuleAction(cmd, args, rulelist.ActionToggle, "toggle")
	},
}

var ruleCopyCmd = &cobra.Command{
	Use:   "copy RULE_ID",
	Short: "Copy the public URL of a rule to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRuleAction(cmd, args, rulelist.ActionCopy, "copy")
	},
}

// runRuleAction loads the scope, dispatches one row action and prints the
// reloaded list for toggles.
func runRuleAction(cmd *cobra.Command, args []string, action rulelist.Action, verb string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	list, err := loadRules(cmd, rulelist.Config{Clipboard: clipboard})
	if err != nil {
		return err
	}

	if action == rulelist.ActionCopy {
		rule, err := findRule(list, id)
		if err != nil {
			return err
		}
		projectID := rule.ProjectID
		if projectID == 0 {
			projectID = ruleProjectID
		}
		baseURL, err := projectBaseURL(cmd, projectID)
		if err != nil {
			return err
		}
		list.SetBaseURL(baseURL)
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := list.Do(ctx, action, id); err != nil {
		return ruleErr(verb, id, err)
	}
	if action == rulelist.ActionToggle {
		return list.Render(cmd.OutOrStdout())
	}
	return nil
}

// clipboard is swapped in tests.
var clipboard rulelist.Clipboard = rulelist.SystemClipboard{}

func projectBaseURL(cmd *cobra.Command, projectID int64) (string, error) {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	manager := projects.New(projects.Config{API: GetAPIClient()})
	if err := manager.Load(ctx); err != nil {
		return "", fmt.Errorf("failed to load projects: %s", client.ErrorText(err))
	}
	project, ok := manager.Find(projectID)
	if !ok {
		return "", fmt.Errorf("project %d not found", projectID)
	}
	return project.BaseURL, nil
}

func readRuleFile(path string) (*editor.Form, error) {
	if path == "" {
		return nil, errors.New("-f, --filename is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return editor.ParseFile(data)
}

// editInEditor writes the form to a temp file, opens $EDITOR on it and
// parses the result. An unchanged file cancels the edit.
func editInEditor(cmd *cobra.Command) rulelist.EditFunc {
	return func(form *editor.Form) (*editor.Form, error) {
		original, err := editor.MarshalFile(form)
		if err != nil {
			return nil, err
		}

		dir, err := os.MkdirTemp("", "hcctl-rule-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "rule.yaml")
		if err := os.WriteFile(path, original, 0o600); err != nil {
			return nil, err
		}

		name := os.Getenv("EDITOR")
		if name == "" {
			name = "vi"
		}
		run := exec.Command(name, path)
		run.Stdin = os.Stdin
		run.Stdout = os.Stdout
		run.Stderr = cmd.ErrOrStderr()
		if err := run.Run(); err != nil {
			return nil, fmt.Errorf("editor %s failed: %w", name, err)
		}

		edited, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if string(edited) == string(original) {
			fmt.Fprintln(cmd.OutOrStdout(), "no changes")
			return nil, nil
		}
		return editor.ParseFile(edited)
	}
}

func init() {
	ruleCmd.PersistentFlags().Int64Var(&ruleProjectID, "project", 0, "Project id")
	ruleCmd.PersistentFlags().BoolVar(&ruleAll, "all", false, "Use the flat collection of every rule")

	ruleListCmd.Flags().StringVarP(&ruleOutput, "output", "o", formatTable, "Output format: table, yaml, json")
	ruleShowCmd.Flags().StringVarP(&ruleOutput, "output", "o", formatTable, "Output format: table, yaml, json")
	ruleCreateCmd.Flags().StringVarP(&ruleFilename, "filename", "f", "", "Path to the rule file (YAML or JSON)")
	ruleCreateCmd.MarkFlagRequired("filename")
	ruleEditCmd.Flags().StringVarP(&ruleFilename, "filename", "f", "", "Replace the rule with this file instead of opening $EDITOR")

	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleShowCmd)
	ruleCmd.AddCommand(ruleCreateCmd)
	ruleCmd.AddCommand(ruleEditCmd)
	ruleCmd.AddCommand(ruleDeleteCmd)
	ruleCmd.AddCommand(ruleToggleCmd)
	ruleCmd.AddCommand(ruleCopyCmd)
}
