package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
	"strings"
)

// testPDF assembles a minimal PDF with an optional info dictionary and
// metadata stream, with a correct cross-reference table.
type testPDF struct {
	info     map[string]string
	xmp      string
	filter   string // "", "FlateDecode" or an unsupported name
	rawInfo  string // overrides info with a literal dictionary body
	omitInfo bool
}

func pdfString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

func (p testPDF) build() []byte {
	var objects []string

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if p.xmp != "" {
		catalog += " /Metadata 4 0 R"
	}
	catalog += " >>"
	objects = append(objects, catalog)
	objects = append(objects, "<< /Type /Pages /Kids [] /Count 0 >>")

	var info strings.Builder
	info.WriteString("<<")
	if p.rawInfo != "" {
		info.WriteString(" " + p.rawInfo)
	} else {
		keys := make([]string, 0, len(p.info))
		for k := range p.info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&info, " /%s %s", k, pdfString(p.info[k]))
		}
	}
	info.WriteString(" >>")
	objects = append(objects, info.String())

	if p.xmp != "" {
		data := []byte(p.xmp)
		dict := "/Type /Metadata /Subtype /XML"
		switch p.filter {
		case "":
		case "FlateDecode":
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			_, _ = zw.Write(data)
			_ = zw.Close()
			data = buf.Bytes()
			dict += " /Filter /FlateDecode"
		default:
			dict += " /Filter /" + p.filter
		}
		objects = append(objects, fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}

	trailer := fmt.Sprintf("<< /Size %d /Root 1 0 R", len(objects)+1)
	if !p.omitInfo {
		trailer += " /Info 3 0 R"
	}
	trailer += " >>"
	fmt.Fprintf(&out, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return out.Bytes()
}

const sampleXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:pdf="http://ns.adobe.com/pdf/1.3/"
        pdf:Producer="Acrobat Distiller 9.0">
      <pdf:Keywords>health, women, 'heart disease'</pdf:Keywords>
    </rdf:Description>
    <rdf:Description rdf:about=""
        xmlns:dc="http://purl.org/dc/elements/1.1/"
        xmlns:xmp="http://ns.adobe.com/xap/1.0/"
        xmlns:acme="http://example.com/acme/1.0/">
      <dc:format>application/pdf</dc:format>
      <dc:creator><rdf:Seq><rdf:li>Jane Doe</rdf:li><rdf:li>John Roe</rdf:li></rdf:Seq></dc:creator>
      <dc:subject><rdf:Bag><rdf:li>health</rdf:li></rdf:Bag></dc:subject>
      <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Heart Health</rdf:li><rdf:li xml:lang="es">Salud</rdf:li></rdf:Alt></dc:title>
      <xmp:CreateDate>2012-05-01T10:00:00Z</xmp:CreateDate>
      <acme:Campaign>Go Red</acme:Campaign>
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`
