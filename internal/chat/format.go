package chat

import (
	"fmt"
	"strings"

	"intralu-bot/internal/portal"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/net/html"
)

const (
	textGreeting = "Hola, soy tu bot de notas de la UNI 😎\n\n" +
		"1️⃣ Usa /login para registrar tu código UNI y contraseña DIRCE.\n" +
		"2️⃣ Usa /notas para ver la lista de cursos.\n" +
		"3️⃣ Responde con el <b>número</b> del curso para ver sus notas.\n\n" +
		"Usa /cancelar para salir del registro en cualquier momento."
	textAskIdentifier   = "Escribe tu <b>Código UNI</b>:"
	textRetryIdentifier = "Vuelve a escribir tu <b>Código UNI</b>:"
	textAskSecret       = "Ahora escribe tu <b>contraseña DIRCE</b>.\n\n" +
		"⚠️ Este bot no guarda tu contraseña en disco: solo la mantiene en memoria para iniciar sesión en INTRALU."
	textConfirmSecret = "¿Confirmas que la <b>contraseña DIRCE</b> que escribiste es correcta?\n" +
		"Por seguridad no la mostraré.\n\nResponde:\n1. Sí\n2. No"
	textRetrySecret   = "Vuelve a escribir tu <b>contraseña DIRCE</b>:"
	textAnswerYesNo   = "Responde 1 para Sí o 2 para No."
	textSaved         = "✅ Listo, credenciales guardadas.\nAhora puedes usar /notas para ver tus cursos."
	textCancelled     = "Registro cancelado."
	textNothingCancel = "No hay ningún registro en curso."
	textNeedLogin     = "Primero usa /login para registrar tu código UNI y contraseña DIRCE."
	textConnecting    = "⏳ Conectándome a INTRALU y leyendo tu lista de cursos matriculados..."
	textNoCourses     = "No pude detectar cursos en la página. Revisa manualmente en INTRALU."
	textOutOfRange    = "Número fuera de rango. Vuelve a enviar un número válido."
	textStaleCourse   = "Esa lista de cursos ya no está vigente. Usa /notas para verla de nuevo."
	textUnknownCourse = "No encontré ese curso. Envía el <b>número</b> de la lista o usa /notas para verla de nuevo."
	textHint          = "Usa /login, /notas o envía un número de curso."
	textUnknownCmd    = "No conozco ese comando. Usa /help para ver lo que puedo hacer."
)

func escape(s string) string {
	return html.EscapeString(s)
}

func confirmIdentifier(identifier string) string {
	return fmt.Sprintf(
		"¿Confirmas que tu Código UNI es <b>%s</b>?\nResponde:\n1. Sí\n2. No",
		escape(identifier),
	)
}

func errorText(action string, err error) string {
	return fmt.Sprintf("❌ Error %s: %s", action, escape(err.Error()))
}

func courseList(courses []portal.CourseRef) string {
	var b strings.Builder
	b.WriteString("📚 <b>Tus cursos detectados</b>\n\n")
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escape(c.DisplayName))
	}
	b.WriteString("\nResponde con el <b>número</b> del curso para ver sus notas.\nEjemplo: <code>1</code>")
	return b.String()
}

func fetchingGrades(ref portal.CourseRef) string {
	return fmt.Sprintf("⏳ Obteniendo notas para: <b>%s</b>...", escape(ref.DisplayName))
}

// gradeTable renders grades as a monospace table, missing scores show as --.
func gradeTable(grades []portal.GradeEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Evaluación", "Nota", "Fecha"})
	for _, g := range grades {
		score := g.Score
		if score == "" {
			score = "--"
		}
		t.AppendRow(table.Row{g.EvaluationLabel, score, g.Date})
	}
	return t.Render()
}

func gradeDetail(ref portal.CourseRef, grades []portal.GradeEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📘 <b>%s</b>\n\n", escape(ref.DisplayName))
	if len(grades) == 0 {
		b.WriteString("<i>No encontré filas de notas en la tabla.</i>\n")
	} else {
		b.WriteString("<b>Notas detectadas:</b>\n")
		fmt.Fprintf(&b, "<pre>%s</pre>\n", escape(gradeTable(grades)))
	}
	b.WriteString("\nPuedes enviar otro número para ver otro curso o usar /notas para ver la lista de nuevo.")
	return b.String()
}
