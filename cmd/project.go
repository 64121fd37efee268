package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/suggest"
	"github.com/marcus/mb/internal/syncer"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"p"},
	Short:   "Create, list, show and delete projects",
	GroupID: "core",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project from a workspace folder",
	Example: `  mb project create
  mb project create --slug tomsblog --name "Tom's Blog" --folder blog --public`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := syncer.CreateInput{}
		in.Slug, _ = cmd.Flags().GetString("slug")
		in.Name, _ = cmd.Flags().GetString("name")
		in.Folder, _ = cmd.Flags().GetString("folder")
		in.Public, _ = cmd.Flags().GetBool("public")

		if needsCreateForm(in) {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("--slug, --name and --folder are required when not running in a terminal")
			}
			if err := runCreateForm(&in, cmd.Flags().Changed("public")); err != nil {
				return err
			}
		}
		in.Slug = strings.TrimSpace(in.Slug)
		in.Name = strings.TrimSpace(in.Name)
		if err := syncer.ValidateInput(in); err != nil {
			return report(err, in.Slug)
		}

		a, err := newApp(nil)
		if err != nil {
			return report(err, in.Slug)
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.verify(ctx); err != nil {
			return report(err, in.Slug)
		}

		p, err := a.syncer.CreateProject(ctx, in)
		if err != nil {
			return report(err, in.Slug)
		}
		if err := a.registry.Refresh(ctx); err != nil {
			output.Warning("project created but the project list could not be refreshed")
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(p)
		}
		fmt.Println(output.CreatedPanel(*p))
		return nil
	},
}

func needsCreateForm(in syncer.CreateInput) bool {
	return in.Slug == "" || in.Name == "" || in.Folder == ""
}

// runCreateForm prompts for the missing create fields. Validation runs
// inline so the form cannot be submitted with a bad slug or folder.
func runCreateForm(in *syncer.CreateInput, publicSet bool) error {
	fields := []huh.Field{
		huh.NewInput().
			Title("Slug").
			Description(fmt.Sprintf("Lowercase letters, digits and '-', %d-%d characters", models.SlugMinLength, models.SlugMaxLength)).
			Placeholder("tomsblog").
			Value(&in.Slug).
			Validate(models.ValidateSlug),
		huh.NewInput().
			Title("Name").
			Placeholder("Tom's Blog").
			Value(&in.Name).
			Validate(models.ValidateName),
		huh.NewInput().
			Title("Folder to share").
			Description("Relative to the workspace, / for the whole workspace").
			Placeholder("blog").
			Value(&in.Folder).
			Validate(models.ValidateFolder),
	}
	if !publicSet {
		fields = append(fields, huh.NewConfirm().
			Title("Public").
			Description("Public sites are listed and indexed").
			Value(&in.Public))
	}

	return huh.NewForm(huh.NewGroup(fields...).Title("New Markbase project")).
		WithTheme(huh.ThemeDracula()).
		Run()
}

// notFoundMessage explains that ref matched no project, suggesting close
// slugs when there are any.
func notFoundMessage(ref string, projects []models.Project) string {
	slugs := make([]string, 0, len(projects))
	for _, p := range projects {
		slugs = append(slugs, p.Slug)
	}
	if near := suggest.Slugs(ref, slugs); len(near) > 0 {
		return fmt.Sprintf("No project %q. Did you mean %s?", ref, strings.Join(near, ", "))
	}
	return fmt.Sprintf("No project %q. Run `mb project list` to see your projects.", ref)
}

func projectNotFound(ref string, projects []models.Project) error {
	output.Error("%s", notFoundMessage(ref, projects))
	return reportedError{fmt.Errorf("%w: %s", apiclient.ErrNotFound, ref)}
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return report(err, "")
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.verify(ctx); err != nil {
			return report(err, "")
		}
		if err := a.registry.Refresh(ctx); err != nil {
			return report(err, "")
		}

		projects := a.registry.Projects()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(projects)
		}
		fmt.Println(output.ProjectTable(projects, output.TerminalWidth(100)))
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <slug|id>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return report(err, args[0])
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.verify(ctx); err != nil {
			return report(err, args[0])
		}
		if err := a.registry.Refresh(ctx); err != nil {
			return report(err, args[0])
		}
		p, ok := a.registry.Lookup(args[0])
		if !ok {
			return projectNotFound(args[0], a.registry.Projects())
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(p)
		}
		rendered, err := output.RenderMarkdown(output.ProjectMarkdown(p))
		if err != nil {
			fmt.Println(output.FormatProjectShort(p))
			return nil
		}
		fmt.Println(rendered)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:     "delete <slug|id>",
	Aliases: []string{"rm"},
	Short:   "Delete a project from Markbase",
	Long:    `Delete a project from Markbase. The local folder is not touched.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return report(err, args[0])
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.verify(ctx); err != nil {
			return report(err, args[0])
		}
		if err := a.registry.Refresh(ctx); err != nil {
			return report(err, args[0])
		}
		p, ok := a.registry.Lookup(args[0])
		if !ok {
			return projectNotFound(args[0], a.registry.Projects())
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("refusing to delete without --yes when not running in a terminal")
			}
			confirmed := false
			err := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %s (%s)?", p.Name, p.Slug)).
					Description("The site goes offline. Your local files are kept.").
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed),
			)).WithTheme(huh.ThemeDracula()).Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := a.syncer.DeleteProject(ctx, p); err != nil {
			return report(err, p.Slug)
		}
		if err := a.registry.Refresh(ctx); err != nil {
			output.Warning("project deleted but the project list could not be refreshed")
		}
		output.Success("Deleted %s", p.Slug)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd)

	projectCreateCmd.Flags().String("slug", "", "URL slug for the site")
	projectCreateCmd.Flags().String("name", "", "Display name")
	projectCreateCmd.Flags().String("folder", "", "Workspace folder to publish")
	projectCreateCmd.Flags().Bool("public", false, "Make the site public")
	projectCreateCmd.Flags().Bool("json", false, "Output the created project as JSON")

	projectListCmd.Flags().Bool("json", false, "Output as JSON")
	projectShowCmd.Flags().Bool("json", false, "Output as JSON")
	projectDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without confirmation")
}
