package portal

import (
	"fmt"
	"io"
	"strings"

	"intralu-bot/lib/htmlutil"
	"intralu-bot/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// ParseCourses extracts the enrolled courses from the rendered course list.
//
// Only rows carrying the "ver curso" button are courses, the same table also
// holds schedule rows such as "07 - 08" that must be skipped.
func ParseCourses(r io.Reader) ([]CourseRef, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse course list: %w", err)
	}

	var courses []CourseRef
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		btn := row.Find("button.btn-ver-curso").First()
		if btn.Length() == 0 {
			return
		}
		cells := htmlutil.CellTexts(row)
		if len(cells) < 2 {
			return
		}
		code := cells[0]
		title := cells[1]
		if code == "" || title == "" {
			return
		}

		courses = append(courses, CourseRef{
			DisplayName: code + " - " + title,
			CourseCode:  strings.TrimSpace(btn.AttrOr("data-codcur", "")),
			SectionCode: strings.TrimSpace(btn.AttrOr("data-seccion", "")),
			PeriodCode:  strings.TrimSpace(btn.AttrOr("data-codper", "")),
		})
	})
	return courses, nil
}

func tableHeaderText(table *goquery.Selection) string {
	thead := table.ChildrenFiltered("thead")
	if thead.Length() > 0 {
		return htmlutil.SelectionText(thead)
	}
	// headers without a thead end up in the implied tbody
	row := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ChildrenFiltered("th").Length() > 0
	}).First()
	return htmlutil.SelectionText(row)
}

// ParseGrades extracts the grade rows of a course detail page. The page holds
// several tables, the grades live in the first one whose header mentions
// both EXAMEN and NOTA. No such table yields no rows.
func ParseGrades(r io.Reader) ([]GradeEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse course detail: %w", err)
	}

	var gradeTable *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if textutil.ContainsAllFold(tableHeaderText(table), "EXAMEN", "NOTA") {
			gradeTable = table
			return false
		}
		return true
	})
	if gradeTable == nil {
		return nil, nil
	}

	var grades []GradeEntry
	gradeTable.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, row *goquery.Selection) {
		cells := htmlutil.CellTexts(row)
		if len(cells) == 0 {
			return
		}
		entry := GradeEntry{EvaluationLabel: cells[0]}
		if len(cells) > 1 {
			entry.Score = cells[1]
		}
		if len(cells) > 3 {
			entry.Date = cells[3]
		}
		grades = append(grades, entry)
	})
	return grades, nil
}
