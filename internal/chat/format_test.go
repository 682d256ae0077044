package chat

import (
	"strings"
	"testing"

	"intralu-bot/internal/portal"

	"github.com/stretchr/testify/require"
)

func TestGradeTable(t *testing.T) {
	out := gradeTable([]portal.GradeEntry{
		{EvaluationLabel: "PRACTICA 1 (N1)", Score: "15", Date: "15/10/2025"},
		{EvaluationLabel: "EXAMEN PARCIAL (EP)"},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	require.Contains(t, lines[1], "EVALUACIÓN")
	require.Contains(t, lines[3], "15/10/2025")
	require.Contains(t, lines[4], "--")
}

func TestGradeDetailEmpty(t *testing.T) {
	out := gradeDetail(portal.CourseRef{DisplayName: "BEG01-U - ECONOMIA <GENERAL>"}, nil)
	require.Contains(t, out, "ECONOMIA &lt;GENERAL&gt;")
	require.Contains(t, out, "No encontré filas de notas")
	require.NotContains(t, out, "<pre>")
}

func TestCourseListNumbering(t *testing.T) {
	out := courseList(testCourses)
	require.Contains(t, out, "1. BEG01-U - ECONOMIA GENERAL\n2. BFI01-V - FISICA I\n3. ")
}
