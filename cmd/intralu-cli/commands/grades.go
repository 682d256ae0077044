package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"intralu-bot/internal/portal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(gradesCmd)
}

func printGrades(ref portal.CourseRef, grades []portal.GradeEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(ref.DisplayName)
	t.AppendHeader(table.Row{"Evaluación", "Nota", "Fecha"})
	for _, g := range grades {
		score := g.Score
		if score == "" {
			score = "--"
		}
		t.AppendRow(table.Row{g.EvaluationLabel, score, g.Date})
	}
	t.Render()
}

var gradesCmd = &cobra.Command{
	Use:   "grades <number | course code | name>",
	Short: "Logs in and prints the grades of one course from the course list.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, creds, done := session(readConfig())
		defer done()

		ctx := cmd.Context()
		courses, err := service.GetCourses(ctx, cliChat, creds)
		if err != nil {
			return err
		}
		if len(courses) == 0 {
			return portal.ErrNoCourses
		}

		query := strings.Join(args, " ")
		var ref portal.CourseRef
		if n, convErr := strconv.Atoi(query); convErr == nil {
			ref, err = service.SelectCourse(cliChat, n-1)
		} else {
			ref, err = service.FindCourse(cliChat, query)
		}
		if err != nil {
			printCourses(courses)
			return fmt.Errorf("pick a course: %w", err)
		}

		grades, err := service.GetGradeDetail(ctx, cliChat, creds, ref)
		if err != nil {
			return err
		}
		printGrades(ref, grades)
		return nil
	},
}
