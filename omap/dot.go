package omap

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// WriteDOT renders the node graph in Graphviz DOT format. Leaves are drawn
// on one rank with dashed edges following the leaf chain.
func (m *Map[K, V]) WriteDOT(w io.Writer) error {
	d := dotWriter[K, V]{w: w, names: make(map[*node[K, V]]string)}

	d.printf("digraph omap {\n")
	d.printf("  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];\n")
	d.printf("  node [shape=none, fontname=\"Helvetica\", fontsize=10];\n")
	d.printf("  edge [arrowsize=0.8, color=\"#444444\"];\n")

	var leaves []*node[K, V]
	var export func(n *node[K, V]) string
	export = func(n *node[K, V]) string {
		name := fmt.Sprintf("node%d", len(d.names))
		d.names[n] = name

		var b strings.Builder
		if n.leaf {
			b.WriteString(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`)
			fmt.Fprintf(&b, `<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>LEAF</B><BR/><FONT POINT-SIZE="8">%d/%d</FONT></TD></TR>`, len(n.keys), m.maxLeaf)
			b.WriteString(`<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`)
			for _, k := range n.keys {
				fmt.Fprintf(&b, "<B>%s</B><BR/>", html.EscapeString(fmt.Sprint(k)))
			}
			b.WriteString(`</TD><TD PORT="next" BGCOLOR="#E1F5FE">next</TD></TR></TABLE>>`)
			d.printf("  %s [label=%s];\n", name, b.String())
			leaves = append(leaves, n)
			return name
		}

		b.WriteString(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`)
		fmt.Fprintf(&b, `<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>INTERNAL</B><BR/><FONT POINT-SIZE="8">%d/%d</FONT></TD></TR><TR>`, len(n.keys)*2+1, len(n.keys), m.maxNode)
		for i, k := range n.keys {
			fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD><TD BGCOLOR="#FFFFFF"><B>%s</B></TD>`, i, html.EscapeString(fmt.Sprint(k)))
		}
		fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD></TR></TABLE>>`, len(n.keys))
		d.printf("  %s [label=%s];\n", name, b.String())

		for i, child := range n.children {
			d.printf("  %s:f%d -> %s;\n", name, i, export(child))
		}
		return name
	}
	export(m.root)

	if len(leaves) > 1 {
		d.printf("  { rank=same;")
		for _, leaf := range leaves {
			d.printf(" %s;", d.names[leaf])
		}
		d.printf(" }\n")
		for _, leaf := range leaves {
			if leaf.next != nil {
				d.printf("  %s:next -> %s [style=dashed, color=\"#03A9F4\", constraint=false];\n", d.names[leaf], d.names[leaf.next])
			}
		}
	}

	d.printf("}\n")
	return d.err
}

type dotWriter[K, V any] struct {
	w     io.Writer
	names map[*node[K, V]]string
	err   error
}

func (d *dotWriter[K, V]) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}
