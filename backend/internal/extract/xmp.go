package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"docgraph/backend/internal/document"
)

const (
	rdfNS = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	xmlNS = "http://www.w3.org/XML/1998/namespace"
)

// namespacePrefixes fixes the prefix for well-known schemas regardless of
// what the producer declared.
var namespacePrefixes = map[string]string{
	rdfNS:                                            "rdf",
	"http://purl.org/dc/elements/1.1/":               "dc",
	"http://ns.adobe.com/xap/1.0/":                   "xap",
	"http://ns.adobe.com/pdf/1.3/":                   "pdf",
	"http://ns.adobe.com/xap/1.0/mm/":                "xapmm",
	"http://ns.adobe.com/pdfx/1.3/":                  "pdfx",
	"http://prismstandard.org/namespaces/basic/2.0/": "prism",
	"http://crossref.org/crossmark/1.0/":             "crossmark",
	"http://ns.adobe.com/xap/1.0/rights/":            "rights",
	xmlNS:                                            "xml",
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n *xmlNode) is(space, local string) bool {
	return n.XMLName.Space == space && n.XMLName.Local == local
}

func (n *xmlNode) attr(space, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// ParseXMP converts an XMP packet into properties grouped by namespace
// prefix. rdf:Bag and rdf:Seq become []string, rdf:Alt becomes a map from
// language to text and nested resources become maps.
func ParseXMP(packet []byte) (document.Metadata, error) {
	var root xmlNode
	if err := xml.Unmarshal(bytes.TrimSpace(packet), &root); err != nil {
		return nil, fmt.Errorf("failed to parse XMP: %w", err)
	}

	p := &xmpParser{declared: make(map[string]string), out: make(document.Metadata)}
	p.collectDeclarations(&root)
	p.walk(&root)
	return p.out, nil
}

type xmpParser struct {
	declared map[string]string // namespace URI -> prefix from xmlns attributes
	out      document.Metadata
}

func (p *xmpParser) collectDeclarations(n *xmlNode) {
	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" {
			if _, ok := p.declared[a.Value]; !ok {
				p.declared[a.Value] = a.Name.Local
			}
		}
	}
	for i := range n.Nodes {
		p.collectDeclarations(&n.Nodes[i])
	}
}

func (p *xmpParser) prefix(space string) string {
	if prefix, ok := namespacePrefixes[space]; ok {
		return prefix
	}
	if prefix, ok := p.declared[space]; ok {
		return prefix
	}
	return space
}

func (p *xmpParser) set(space, local string, value any) {
	prefix := p.prefix(space)
	block, ok := p.out[prefix]
	if !ok {
		block = make(map[string]any)
		p.out[prefix] = block
	}
	block[local] = value
}

func (p *xmpParser) walk(n *xmlNode) {
	if n.is(rdfNS, "Description") {
		p.description(n)
		return
	}
	for i := range n.Nodes {
		p.walk(&n.Nodes[i])
	}
}

func (p *xmpParser) description(n *xmlNode) {
	for _, a := range n.Attrs {
		if isMetaAttr(a.Name) {
			continue
		}
		p.set(a.Name.Space, a.Name.Local, a.Value)
	}
	for i := range n.Nodes {
		prop := &n.Nodes[i]
		p.set(prop.XMLName.Space, prop.XMLName.Local, p.value(prop))
	}
}

func (p *xmpParser) value(prop *xmlNode) any {
	if resource, ok := prop.attr(rdfNS, "resource"); ok {
		return resource
	}

	for i := range prop.Nodes {
		child := &prop.Nodes[i]
		switch {
		case child.is(rdfNS, "Bag"), child.is(rdfNS, "Seq"):
			items := make([]string, 0, len(child.Nodes))
			for j := range child.Nodes {
				if child.Nodes[j].is(rdfNS, "li") {
					items = append(items, strings.TrimSpace(child.Nodes[j].Text))
				}
			}
			return items
		case child.is(rdfNS, "Alt"):
			alt := make(map[string]string, len(child.Nodes))
			for j := range child.Nodes {
				li := &child.Nodes[j]
				if !li.is(rdfNS, "li") {
					continue
				}
				lang, ok := li.attr(xmlNS, "lang")
				if !ok {
					lang = "x-default"
				}
				alt[lang] = strings.TrimSpace(li.Text)
			}
			return alt
		case child.is(rdfNS, "Description"):
			return p.nested(child)
		}
	}

	if parseType, _ := prop.attr(rdfNS, "parseType"); parseType == "Resource" {
		return p.nested(prop)
	}
	return strings.TrimSpace(prop.Text)
}

// nested flattens a structured value to "prefix:name" keys
func (p *xmpParser) nested(n *xmlNode) map[string]any {
	out := make(map[string]any)
	for _, a := range n.Attrs {
		if isMetaAttr(a.Name) {
			continue
		}
		out[p.prefix(a.Name.Space)+":"+a.Name.Local] = a.Value
	}
	for i := range n.Nodes {
		child := &n.Nodes[i]
		out[p.prefix(child.XMLName.Space)+":"+child.XMLName.Local] = p.value(child)
	}
	return out
}

func isMetaAttr(name xml.Name) bool {
	switch {
	case name.Space == "xmlns", name.Space == "" && name.Local == "xmlns":
		return true
	case name.Space == rdfNS:
		return true
	case name.Space == xmlNS:
		return true
	}
	return false
}
