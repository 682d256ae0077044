package commands

import (
	"os"

	"intralu-bot/internal/portal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(coursesCmd)
}

func printCourses(courses []portal.CourseRef) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Curso", "Código", "Sección", "Periodo"})
	for i, c := range courses {
		t.AppendRow(table.Row{i + 1, c.DisplayName, c.CourseCode, c.SectionCode, c.PeriodCode})
	}
	t.Render()
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Logs in and lists the enrolled courses.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, creds, done := session(readConfig())
		defer done()

		courses, err := service.GetCourses(cmd.Context(), cliChat, creds)
		if err != nil {
			return err
		}
		printCourses(courses)
		return nil
	},
}
