package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/sardine-ai/configconsole/configtree"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	nodeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// console shows alerts and navigation targets on a terminal.
type console struct {
	out io.Writer
}

func (c console) Success(message string) {
	logrus.Debug(message)
	fmt.Fprintln(c.out, successStyle.Render(message))
}

func (c console) Danger(message string) {
	fmt.Fprintln(c.out, dangerStyle.Render(message))
}

func (c console) NavigateTo(segments ...string) {
	fmt.Fprintln(c.out, mutedStyle.Render("-> /"+strings.Join(segments, "/")))
}

// nodeLabel names the template-global node, whose name is empty.
func nodeLabel(node configtree.Node) string {
	if node.Name == "" {
		return "(global)"
	}
	return node.Name
}

func iconMark(icon string) string {
	if icon == configtree.IconGlobal {
		return "[G]"
	}
	return "[S]"
}

func renderTree(w io.Writer, template string, tree []configtree.Node) {
	fmt.Fprintln(w, nodeStyle.Render(template))
	if len(tree) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no values"))
		return
	}
	for _, node := range tree {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(iconMark(node.Icon)), nodeStyle.Render(nodeLabel(node)))
		for _, item := range node.Items {
			fmt.Fprintf(w, "      %s = %s\n", keyStyle.Render(item.Key), item.Value)
		}
	}
}
