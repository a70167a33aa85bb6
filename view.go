package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/selection"
)

const (
	verseTextPadding  = 8
	searchTextPadding = 21
	detailPadding     = 8
)

func (m model) View() string {
	var content strings.Builder

	switch m.mode {
	case searchMode:
		m.viewSearch(&content)
	case askMode:
		m.viewAsk(&content)
	default:
		if m.zenMode {
			m.viewZen(&content)
		} else {
			m.viewBrowse(&content)
		}
	}

	return content.String()
}

func (m model) helpText() string {
	switch m.mode {
	case searchMode:
		if m.input.Focused() {
			return "Type to search or enter a reference • Enter: Execute • Esc: Back"
		}
		return "j/k: Navigate • Enter: Expand • o: Open • n/p: Page • +/-: Page size • /: New search • Esc: Back"
	case askMode:
		if m.input.Focused() {
			return "Type a question • Enter: Ask • Tab: Citations • Esc: Back"
		}
		return "j/k: Citations • Enter: Expand • o: Open • Tab: Ask • Ctrl+l: Clear • Esc: Back"
	}
	if m.zenMode {
		return "j/k: Navigate • Space: Play/Pause • [/]: Rik • z: Exit zen • q: Quit"
	}
	return "j/k: Navigate • h/l: Sukta • b/w: Mandala • Enter: Detail • Space: Play • p: Play here • [/]: Rik • ,/.: Seek • t/T: Text • m: Bookmark • e: Export • /: Search • ?: Ask • r/d: Random/Daily • z: Zen • q: Quit"
}

func (m model) header() string {
	title := "Rigveda"
	if m.nav.Mandala > 0 {
		title += fmt.Sprintf(" · Mandala %d", m.nav.Mandala)
	}
	if m.nav.Sukta > 0 {
		title += fmt.Sprintf(" · Sukta %d", m.nav.Sukta)
	}
	if m.loading() {
		title = m.spinner.View() + " " + title
	}
	return m.bookStyle.Render(title)
}

// footer renders the banner and help lines. It always takes two lines.
func (m model) footer() string {
	banner := ""
	switch {
	case m.err != nil:
		banner = m.errStyle.Render(truncateText(m.err.Error(), max(10, m.width-2)))
	case m.status != "":
		banner = m.verseNumStyle.Render(m.status)
	case m.daily != nil && m.mode == browseMode && !m.zenMode:
		banner = m.dimStyle.Render(truncateText(fmt.Sprintf("Verse of the day %s: %s", m.daily.Ref, oneLine(m.daily.Summary())), max(10, m.width-2)))
	}
	helpStyled := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.VerseNumColor)).Render(truncateText(m.helpText(), max(10, m.width)))
	return m.centerText(banner) + "\n" + m.centerText(helpStyled)
}

func (m model) playerLine() string {
	t := m.track
	if len(t.Riks) == 0 {
		return ""
	}
	icon := "■"
	switch {
	case t.Waiting:
		icon = m.spinner.View()
	case t.Playing:
		icon = "▶"
	case t.Elapsed > 0:
		icon = "⏸"
	}
	frac := 0.0
	if t.Duration > 0 {
		frac = t.Elapsed / t.Duration
	}
	follow := ""
	if m.follow {
		follow = "  follow"
	}
	return fmt.Sprintf("%s %s / %s  rik %d/%d  %s%s",
		icon, clock(t.Elapsed), clock(t.Duration), t.Index+1, len(t.Riks), m.progress.ViewAs(frac), follow)
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (m model) viewBrowse(content *strings.Builder) {
	content.WriteString(m.centerText(m.header()))
	content.WriteString("\n")
	content.WriteString(m.centerText(m.playerLine()))
	content.WriteString("\n\n")

	riks := m.riks()
	visibleVerses := m.getVisibleVerses()
	m.adjustScrollOffset(len(riks), visibleVerses)
	end := min(len(riks), m.scrollOffset+visibleVerses)

	linesUsed := 3
	for i := m.scrollOffset; i < end; i++ {
		v := riks[i]
		verseNumStr := m.verseNumStyle.Render(fmt.Sprintf("%3d", v.Ref.Rik))
		linesUsed += m.renderVerse(content, m.verseText(v), m.marker(i, v.Ref), i == m.selected, verseNumStr, verseTextPadding)
		if detail, ok := m.isExpanded(v.Ref); ok {
			lines := m.detailLines(v.Ref, detail)
			for _, line := range lines {
				content.WriteString(line)
				content.WriteByte('\n')
			}
			linesUsed += len(lines)
		}
	}

	remainingLines := m.height - linesUsed - 2
	if remainingLines > 0 {
		content.WriteString(strings.Repeat("\n", remainingLines))
	}
	content.WriteString(m.footer())
}

// marker flags the rik being recited and bookmarked riks.
func (m model) marker(i int, ref corpus.Reference) string {
	var b strings.Builder
	if len(m.track.Riks) > 0 && i == m.track.Index && (m.track.Playing || m.track.Elapsed > 0) {
		b.WriteString("♪")
	} else {
		b.WriteString(" ")
	}
	if m.bookmarks[ref] {
		b.WriteString("★")
	} else {
		b.WriteString(" ")
	}
	return b.String()
}

func (m model) viewZen(content *strings.Builder) {
	header := m.bookStyle.Render(fmt.Sprintf("Rigveda %d.%d", m.nav.Mandala, m.nav.Sukta))
	content.WriteString(m.centerText(header))
	content.WriteString("\n\n")

	versesAbove := 2
	versesBelow := 2

	riks := m.riks()
	textWidth := max(20, m.width-detailPadding)
	var current []string
	if v, ok := m.selectedRik(); ok {
		current = wrapVerseText(m.verseText(v), textWidth)
	}

	headerLines := 1
	headerSpacing := 1
	helpLines := 2
	verseCount := versesAbove + 1 + versesBelow
	verseLinesTotal := verseCount + (verseCount - 1) + max(0, len(current)-1)

	availableHeight := m.height - headerLines - headerSpacing - helpLines

	topPadding := max(0, (availableHeight-verseLinesTotal)/2)

	for i := 0; i < topPadding; i++ {
		content.WriteString("\n")
	}

	startIdx := m.selected - versesAbove
	endIdx := m.selected + versesBelow + 1

	for i := startIdx; i < endIdx; i++ {
		if i < 0 || i >= len(riks) {
			content.WriteString("\n")
		} else if i == m.selected {
			for _, line := range current {
				m.renderVerseZen(content, line, true)
			}
		} else {
			m.renderVerseZen(content, truncateText(oneLine(m.verseText(riks[i])), textWidth), false)
		}
		if i < endIdx-1 {
			content.WriteString("\n")
		}
	}

	linesUsed := headerLines + headerSpacing + topPadding + verseLinesTotal
	bottomPadding := max(0, m.height-linesUsed-helpLines)
	for i := 0; i < bottomPadding; i++ {
		content.WriteString("\n")
	}

	content.WriteString(m.footer())
}

func (m model) viewSearch(content *strings.Builder) {
	st := m.results
	title := "Search"
	if st.Query != "" {
		title = fmt.Sprintf("Search: %s (%d results)", st.Query, st.TotalResults)
	}
	if m.loading() {
		title = m.spinner.View() + " " + title
	}
	content.WriteString(m.centerText(m.bookStyle.Render(title)))
	content.WriteString("\n")
	content.WriteString(m.input.View())
	content.WriteString("\n\n")
	linesUsed := 3

	switch {
	case st.HasResults():
		availableHeight := max(5, m.height-8)
		start, end := m.visibleResults(availableHeight)
		for i := start; i < end; i++ {
			h := st.Hits[i]
			reference := fmt.Sprintf("%-10s %4.2f", h.Ref, h.Similarity)
			verseNumStr := m.verseNumStyle.Render(reference)
			linesUsed += m.renderVerse(content, oneLine(h.Summary()), m.marker(-1, h.Ref), i == m.resultSel, verseNumStr, searchTextPadding)
			if st.Selection.Key == selection.KeyFor(h.Ref, selection.ProvenanceSearch) {
				lines := m.detailLines(h.Ref, st.Selection.Detail)
				for _, line := range lines {
					content.WriteString(line)
					content.WriteByte('\n')
				}
				linesUsed += len(lines)
			}
		}
		pages := fmt.Sprintf("%s  page %d of %d · %d per page", m.dots.View(), st.Page, st.TotalPages, st.PageSize)
		content.WriteString(m.centerText(pages))
		content.WriteByte('\n')
		linesUsed++
	case st.Query != "" && !st.Loading && st.Err == nil:
		content.WriteString(m.centerText(m.dimStyle.Render("No riks found")))
		content.WriteByte('\n')
		linesUsed++
	}

	remainingLines := m.height - linesUsed - 2
	if remainingLines > 0 {
		content.WriteString(strings.Repeat("\n", remainingLines))
	}
	content.WriteString(m.footer())
}

// visibleResults picks the window of hits around the cursor that fits in
// availableHeight.
func (m model) visibleResults(availableHeight int) (start, end int) {
	hits := m.results.Hits
	start = m.resultSel
	used := m.calculateTextHeight(oneLine(hits[start].Summary()), searchTextPadding)
	for start > 0 {
		h := m.calculateTextHeight(oneLine(hits[start-1].Summary()), searchTextPadding)
		if used+h > availableHeight/2 {
			break
		}
		start--
		used += h
	}
	end = m.resultSel + 1
	for end < len(hits) {
		h := m.calculateTextHeight(oneLine(hits[end].Summary()), searchTextPadding)
		if used+h > availableHeight {
			break
		}
		end++
		used += h
	}
	return start, end
}

func (m model) viewAsk(content *strings.Builder) {
	title := "Ask the Rigveda"
	if m.loading() {
		title = m.spinner.View() + " " + title
	}
	content.WriteString(m.centerText(m.bookStyle.Render(title)))
	content.WriteString("\n\n")

	var body strings.Builder
	cite := 0
	width := max(20, m.width-4)
	for _, t := range m.talk.Turns {
		body.WriteString(m.verseNumStyle.Render("Q: "))
		body.WriteString(m.textStyle.Render(t.Question))
		body.WriteString("\n")
		switch {
		case t.Pending:
			body.WriteString(m.dimStyle.Render("  " + m.spinner.View() + " thinking…"))
			body.WriteString("\n")
		case t.Err != nil:
			body.WriteString(m.errStyle.Render("  " + t.Err.Error()))
			body.WriteString("\n")
		default:
			body.WriteString(m.renderAnswer(t.ID, t.Answer, width))
			body.WriteString("\n")
		}
		provenance := selection.CitationProvenance(t.ID)
		for _, h := range t.Citations {
			cursor := " "
			if cite == m.citeSel && !m.input.Focused() {
				cursor = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.HighlightColor)).Bold(true).Render(">")
			}
			line := fmt.Sprintf("%s %s %s", cursor, m.verseNumStyle.Render(fmt.Sprintf("%-10s", h.Ref)),
				m.textStyle.Render(truncateText(oneLine(h.Summary()), max(10, m.width-16))))
			body.WriteString(line)
			body.WriteString("\n")
			if m.talk.Selection.Key == selection.KeyFor(h.Ref, provenance) {
				for _, l := range m.detailLines(h.Ref, m.talk.Selection.Detail) {
					body.WriteString(l)
					body.WriteString("\n")
				}
			}
			cite++
		}
		body.WriteString("\n")
	}

	// Keep the latest turn visible: show the tail of the transcript.
	available := max(3, m.height-6)
	lines := strings.Split(strings.TrimRight(body.String(), "\n"), "\n")
	if len(lines) > available {
		lines = lines[len(lines)-available:]
	}
	used := 2
	if body.Len() > 0 {
		content.WriteString(strings.Join(lines, "\n"))
		content.WriteString("\n")
		used += len(lines)
	}

	remainingLines := m.height - used - 4
	if remainingLines > 0 {
		content.WriteString(strings.Repeat("\n", remainingLines))
	}
	content.WriteString(m.input.View())
	content.WriteString("\n")
	content.WriteString(m.footer())
}

// renderAnswer renders markdown once per turn and width.
func (m model) renderAnswer(id int, answer string, width int) string {
	key := fmt.Sprintf("%d:%d", id, width)
	if out, ok := m.answers[key]; ok {
		return out
	}
	out := strings.TrimRight(renderMarkdown(answer, width), "\n")
	m.answers[key] = out
	return out
}

func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// verseText is the rik text shown in the list for the chosen field.
func (m model) verseText(v corpus.Verse) string {
	var text string
	switch fieldNames[m.field] {
	case "samhita":
		text = v.Samhita
	case "transliteration":
		text = v.Transliteration
	case "padapatha":
		text = v.Padapatha
	default:
		text = v.Translation
	}
	if strings.TrimSpace(text) == "" {
		text = v.Samhita
	}
	return oneLine(text)
}

// detailLines renders the expanded view of a rik. A nil detail is still
// loading.
func (m model) detailLines(ref corpus.Reference, detail *corpus.Verse) []string {
	padding := strings.Repeat(" ", detailPadding)
	if detail == nil {
		return []string{padding + m.dimStyle.Render("loading "+ref.String()+"…"), ""}
	}
	textWidth := max(20, m.width-detailPadding-2)
	var lines []string
	section := func(title, text string) {
		text = oneLine(text)
		if text == "" {
			return
		}
		lines = append(lines, padding+m.verseNumStyle.Render(title))
		for _, l := range wrapVerseText(text, textWidth) {
			lines = append(lines, padding+m.textStyle.Render(l))
		}
	}
	if detail.Deity != "" {
		lines = append(lines, padding+m.bookStyle.Render("Deity: "+detail.Deity))
	}
	section("Samhita", detail.Samhita)
	section("Padapatha", detail.Padapatha)
	section("Transliteration", detail.Transliteration)
	section("Translation", detail.Translation)
	if notes := m.notes[ref]; len(notes) > 0 {
		lines = append(lines, padding+m.verseNumStyle.Render("Notes"))
		for _, n := range notes {
			for _, l := range wrapVerseText("- "+n.Text, textWidth) {
				lines = append(lines, padding+m.dimStyle.Render(l))
			}
		}
	}
	return append(lines, "")
}

func (m *model) adjustScrollOffset(listLen int, visibleItems int) {
	maxScroll := max(0, listLen-visibleItems)
	m.scrollOffset = min(maxScroll, max(0, m.scrollOffset))
	if m.selected >= m.scrollOffset+visibleItems {
		m.scrollOffset = m.selected - visibleItems + 1
	}
	if m.selected < m.scrollOffset {
		m.scrollOffset = m.selected
	}
	m.scrollOffset = max(0, m.scrollOffset)
}

func (m model) getVisibleVerses() int {
	if m.mode != browseMode {
		available := m.height - 4
		if available < 3 {
			return 3
		}
		return available
	}

	riks := m.riks()
	availableHeight := max(5, m.height-6)
	currentHeight := 0
	visibleCount := 0

	for i := m.scrollOffset; i < len(riks) && currentHeight < availableHeight; i++ {
		verseHeight := m.calculateVerseHeight(riks[i])
		if currentHeight+verseHeight <= availableHeight {
			currentHeight += verseHeight
			visibleCount++
		} else {
			break
		}
	}

	return max(1, visibleCount)
}

func (m model) calculateTextHeight(text string, paddingWidth int) int {
	textWidth := max(20, m.width-paddingWidth)
	return max(2, len(wrapVerseText(text, textWidth))+1)
}

func (m model) calculateVerseHeight(v corpus.Verse) int {
	h := m.calculateTextHeight(m.verseText(v), verseTextPadding)
	if detail, ok := m.isExpanded(v.Ref); ok {
		h += len(m.detailLines(v.Ref, detail))
	}
	return h
}

// wrapVerseText breaks text into lines of at most maxWidth cells.
func wrapVerseText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	lines := make([]string, 0, (len(words)+3)/4)
	var currentLine strings.Builder
	lineWidth := 0

	for i, word := range words {
		w := lipgloss.Width(word)
		if lineWidth > 0 {
			if lineWidth+1+w > maxWidth {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
				currentLine.WriteString(word)
				lineWidth = w
			} else {
				currentLine.WriteByte(' ')
				currentLine.WriteString(word)
				lineWidth += 1 + w
			}
		} else {
			currentLine.WriteString(word)
			lineWidth = w
		}

		if i == len(words)-1 && currentLine.Len() > 0 {
			lines = append(lines, currentLine.String())
		}
	}

	return lines
}

func (m model) renderVerse(content *strings.Builder, text, marker string, isSelected bool, verseNumStr string, paddingWidth int) int {
	if isSelected {
		cursorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.HighlightColor)).
			Bold(true)
		content.WriteString(cursorStyle.Render(">"))
	} else {
		content.WriteString(" ")
	}
	content.WriteString(marker)
	content.WriteByte(' ')
	content.WriteString(verseNumStr)
	content.WriteByte(' ')

	textWidth := max(20, m.width-paddingWidth)
	verseLines := wrapVerseText(text, textWidth)

	if len(verseLines) > 0 {
		content.WriteString(m.textStyle.Render(verseLines[0]))
	}
	content.WriteByte('\n')
	linesUsed := 1

	if len(verseLines) > 1 {
		padding := strings.Repeat(" ", paddingWidth)
		for _, line := range verseLines[1:] {
			content.WriteString(padding)
			content.WriteString(m.textStyle.Render(line))
			content.WriteByte('\n')
			linesUsed++
		}
	}

	content.WriteByte('\n')
	return linesUsed + 1
}

// truncateText shortens text to maxLen runes.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func (m model) centerText(text string) string {
	visualWidth := lipgloss.Width(text)
	if visualWidth >= m.width {
		return text
	}
	leftPadding := (m.width - visualWidth) / 2
	return strings.Repeat(" ", leftPadding) + text
}

func (m model) renderVerseZen(content *strings.Builder, text string, isSelected bool) {
	var style lipgloss.Style
	if isSelected {
		style = m.textStyle
	} else {
		style = m.dimStyle
	}

	line := style.Render(text)
	visualWidth := lipgloss.Width(line)

	if visualWidth < m.width {
		leftPadding := (m.width - visualWidth) / 2
		content.WriteString(strings.Repeat(" ", leftPadding))
	}

	content.WriteString(line)
	content.WriteString("\n")
}
