package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-expand/expand"
	"github.com/wippyai/wasm-expand/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	markerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type viewState int

const (
	stateSelectFunc viewState = iota
	stateShowBody
)

type funcEntry struct {
	name    string
	funcIdx uint32
	markers int
}

type interactiveModel struct {
	err       error
	filename  string
	namespace string
	keys      map[expand.KeySlot]uint32
	raw       []byte
	mod       *wasm.Module
	funcs     []funcEntry
	viewport  viewport.Model
	selected  int
	state     viewState
	ready     bool
}

type loadedMsg struct {
	err   error
	raw   []byte
	mod   *wasm.Module
	funcs []funcEntry
}

func newInteractiveModel(filename, namespace string, keys map[expand.KeySlot]uint32) *interactiveModel {
	if namespace == "" {
		namespace = expand.DefaultNamespace
	}
	return &interactiveModel{
		filename:  filename,
		namespace: namespace,
		keys:      keys,
		state:     stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	mod, err := wasm.DecodeModule(data)
	if err != nil {
		return loadedMsg{err: err}
	}

	markerFuncs, markerGlobals := markerIndexSets(mod, m.namespace)
	numImported := uint32(mod.NumImportedFuncs())

	funcs := make([]funcEntry, 0, len(mod.Code))
	for i := range mod.Code {
		funcIdx := numImported + uint32(i)
		entry := funcEntry{name: fmt.Sprintf("func[%d]", funcIdx), funcIdx: funcIdx}
		for _, exp := range mod.Exports {
			if exp.Kind == wasm.KindFunc && exp.Idx == funcIdx {
				entry.name = exp.Name
				break
			}
		}
		body, err := wasm.DecodeInstructions(mod.Code[i].Code)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("decode func %d: %w", funcIdx, err)}
		}
		entry.markers = countMarkerRefs(body, markerFuncs, markerGlobals)
		funcs = append(funcs, entry)
	}
	return loadedMsg{raw: data, mod: mod, funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectFunc && len(m.funcs) > 0 {
				m.viewport.SetContent(m.renderBody(m.funcs[m.selected]))
				m.viewport.GotoTop()
				m.state = stateShowBody
			}

		case "esc":
			if m.state == stateShowBody {
				m.state = stateSelectFunc
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.raw = msg.raw
		m.mod = msg.mod
		m.funcs = msg.funcs
	}

	if m.state == stateShowBody {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// renderBody disassembles the selected function before and after expansion.
// Expansion runs on a fresh decode of the original bytes so browsing never
// mutates the loaded module.
func (m *interactiveModel) renderBody(f funcEntry) string {
	var b strings.Builder

	numImported := uint32(m.mod.NumImportedFuncs())
	body, err := wasm.DecodeInstructions(m.mod.Code[f.funcIdx-numImported].Code)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	markerFuncs, markerGlobals := markerIndexSets(m.mod, m.namespace)

	b.WriteString(headerStyle.Render("Before expansion"))
	b.WriteString("\n")
	writeDisassembly(&b, body, markerFuncs, markerGlobals)

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("After expansion"))
	b.WriteString("\n")

	scratch, err := wasm.DecodeModule(m.raw)
	if err != nil {
		b.WriteString(errorStyle.Render(err.Error()))
		return b.String()
	}
	p := expand.New(scratch, expand.Config{
		Namespace:   m.namespace,
		Keys:        m.keys,
		Placeholder: expand.PassthroughPlaceholder,
		Crypt:       expand.InlineXorCrypt,
	})
	if err := p.ExpandFunc(f.funcIdx); err != nil {
		b.WriteString(errorStyle.Render(err.Error()))
		return b.String()
	}
	expanded, err := wasm.DecodeInstructions(scratch.Code[f.funcIdx-numImported].Code)
	if err != nil {
		b.WriteString(errorStyle.Render(err.Error()))
		return b.String()
	}
	writeDisassembly(&b, expanded, nil, nil)
	return b.String()
}

func writeDisassembly(b *strings.Builder, body []wasm.Instruction, markerFuncs, markerGlobals map[uint32]bool) {
	for i, instr := range body {
		line := fmt.Sprintf("%4d  %s", i, instr)
		if refsMarker(instr, markerFuncs, markerGlobals) {
			line = markerStyle.Render(line + "   <- marker")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.mod == nil || !m.ready {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Marker Expansion"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function:\n\n")
		for i, f := range m.funcs {
			line := m.formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter disassemble • q quit"))

	case stateShowBody:
		b.WriteString(funcStyle.Render(m.funcs[m.selected].name))
		b.WriteString("\n")
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}
	return b.String()
}

func (m *interactiveModel) formatFunc(f funcEntry) string {
	line := funcStyle.Render(f.name)
	if f.markers > 0 {
		line += " " + markerStyle.Render(fmt.Sprintf("(%d markers)", f.markers))
	}
	return line
}

// markerIndexSets collects the function and global indices imported from
// namespace, in combined index space.
func markerIndexSets(mod *wasm.Module, namespace string) (funcs, globals map[uint32]bool) {
	funcs = make(map[uint32]bool)
	globals = make(map[uint32]bool)
	var funcIdx, globalIdx uint32
	for _, imp := range mod.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			if imp.Module == namespace {
				funcs[funcIdx] = true
			}
			funcIdx++
		case wasm.KindGlobal:
			if imp.Module == namespace {
				globals[globalIdx] = true
			}
			globalIdx++
		}
	}
	return funcs, globals
}

func refsMarker(instr wasm.Instruction, funcs, globals map[uint32]bool) bool {
	switch imm := instr.Imm.(type) {
	case wasm.CallImm:
		return funcs[imm.FuncIdx]
	case wasm.RefFuncImm:
		return funcs[imm.FuncIdx]
	case wasm.GlobalImm:
		return globals[imm.GlobalIdx]
	}
	return false
}

func countMarkerRefs(body []wasm.Instruction, funcs, globals map[uint32]bool) int {
	n := 0
	for _, instr := range body {
		if refsMarker(instr, funcs, globals) {
			n++
		}
	}
	return n
}

func runInteractive(filename, namespace string, keys map[expand.KeySlot]uint32) error {
	p := tea.NewProgram(newInteractiveModel(filename, namespace, keys), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
