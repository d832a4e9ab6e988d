package graph

import (
	"sort"
	"strings"
)

// NodeType represents the kind of entity in the code graph.
type NodeType string

const (
	NodeRepository      NodeType = "Repository"
	NodeLanguage        NodeType = "Language"
	NodeFile            NodeType = "File"
	NodeFunction        NodeType = "Function"
	NodeClass           NodeType = "Class"
	NodeEndpoint        NodeType = "Endpoint"
	NodeDataModel       NodeType = "DataModel"
	NodePage            NodeType = "Page"
	NodeRequest         NodeType = "Request"
	NodeInstance        NodeType = "Instance"
	NodeImport          NodeType = "Import"
	NodeTest            NodeType = "Test"
	NodeIntegrationTest NodeType = "IntegrationTest"
	NodeLibrary         NodeType = "Library"
)

// NodeTypes lists every node type in display order.
var NodeTypes = []NodeType{
	NodeRepository, NodeLanguage, NodeFile, NodeImport, NodeLibrary,
	NodeClass, NodeDataModel, NodeFunction, NodeInstance, NodeEndpoint,
	NodeRequest, NodePage, NodeTest, NodeIntegrationTest,
}

// EdgeType represents a relationship between two nodes.
type EdgeType string

const (
	EdgeContains     EdgeType = "Contains"
	EdgeCalls        EdgeType = "Calls"
	EdgeHandler      EdgeType = "Handler"
	EdgeRenders      EdgeType = "Renders"
	EdgeOf           EdgeType = "Of"
	EdgeParentOf     EdgeType = "ParentOf"
	EdgeClassImports EdgeType = "ClassImports"
	EdgeUses         EdgeType = "Uses"
	EdgeOperand      EdgeType = "Operand"
	EdgeImplements   EdgeType = "Implements"
)

// EdgeTypes lists every edge type in display order.
var EdgeTypes = []EdgeType{
	EdgeContains, EdgeCalls, EdgeUses, EdgeHandler, EdgeRenders, EdgeOf,
	EdgeParentOf, EdgeClassImports, EdgeOperand, EdgeImplements,
}

// Recognized metadata keys. Consumers rely on these names.
const (
	// MetaVerb is the upper-case HTTP verb of an Endpoint or Request.
	MetaVerb = "verb"
	// MetaHandler is the raw handler reference of an Endpoint ("people#show", "getPerson").
	MetaHandler = "handler"
	// MetaGroup names the function implementing an endpoint group marker.
	MetaGroup = "group"
	// MetaParent is the superclass name of a Class.
	MetaParent = "parent"
	// MetaIncludes is the comma-separated mixin list of a Class.
	MetaIncludes = "includes"
	// MetaImplements is the comma-separated interface list of a Class.
	MetaImplements = "implements"
	// MetaInterface marks interface and trait declarations with "true".
	MetaInterface = "interface"
	// MetaOperand is the enclosing class of a method.
	MetaOperand = "operand"
	// MetaComponent marks UI components with "true".
	MetaComponent = "component"
	// MetaRenders is the raw render target of a Page.
	MetaRenders = "renders"
	// MetaLinks is the comma-separated list of hrefs and form actions of a Page.
	MetaLinks     = "links"
	MetaVersion   = "version"
	MetaEcosystem = "ecosystem"
	MetaSource    = "source"
	MetaLines     = "lines"
	MetaTestKind  = "kind"
)

// NodeData is the payload shared by every node kind.
type NodeData struct {
	Name     string            `json:"name"`
	File     string            `json:"file"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Body     string            `json:"body,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	DataType string            `json:"data_type,omitempty"`
}

// NewNodeData returns a payload with an allocated meta map.
func NewNodeData(name, file string) NodeData {
	return NodeData{Name: name, File: file, Meta: make(map[string]string)}
}

// Clone returns a deep copy of the payload.
func (nd NodeData) Clone() NodeData {
	c := nd
	if nd.Meta != nil {
		c.Meta = make(map[string]string, len(nd.Meta))
		for k, v := range nd.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// SetMeta sets a metadata key, allocating the map on first use.
func (nd *NodeData) SetMeta(key, value string) {
	if nd.Meta == nil {
		nd.Meta = make(map[string]string)
	}
	nd.Meta[key] = value
}

// MetaValue returns the metadata value for key, or "".
func (nd NodeData) MetaValue(key string) string {
	if nd.Meta == nil {
		return ""
	}
	return nd.Meta[key]
}

// Node is a typed code entity.
type Node struct {
	Type NodeType `json:"node_type"`
	Data NodeData `json:"node_data"`
}

// Key returns the identity key of the node: type, file and name.
func (n Node) Key() string {
	return nodeKey(n.Type, n.Data.Name, n.Data.File)
}

func nodeKey(nt NodeType, name, file string) string {
	return string(nt) + "\x1f" + file + "\x1f" + name
}

// CallsMeta annotates a Calls edge with its call site.
type CallsMeta struct {
	CallStart int    `json:"call_start"`
	CallEnd   int    `json:"call_end"`
	Operand   string `json:"operand,omitempty"`
}

// Edge is a directed relation between two node payloads. Source and Target
// are copies of the endpoint payloads, not references.
type Edge struct {
	Type   EdgeType   `json:"edge"`
	Calls  *CallsMeta `json:"calls,omitempty"`
	Source Node       `json:"source"`
	Target Node       `json:"target"`
}

// NewEdge creates an edge between two typed payloads.
func NewEdge(et EdgeType, st NodeType, src NodeData, tt NodeType, dst NodeData) Edge {
	return Edge{
		Type:   et,
		Source: Node{Type: st, Data: src},
		Target: Node{Type: tt, Data: dst},
	}
}

// ContainsEdge creates a Contains edge from parent to child.
func ContainsEdge(pt NodeType, parent NodeData, ct NodeType, child NodeData) Edge {
	return NewEdge(EdgeContains, pt, parent, ct, child)
}

// CallsEdge creates a Calls edge annotated with its call site.
func CallsEdge(st NodeType, src NodeData, tt NodeType, dst NodeData, meta CallsMeta) Edge {
	e := NewEdge(EdgeCalls, st, src, tt, dst)
	e.Calls = &meta
	return e
}

// Key returns the identity key of the edge. Call-site metadata is not part
// of the identity.
func (e Edge) Key() string {
	return string(e.Type) + "\x1e" + e.Source.Key() + "\x1e" + e.Target.Key()
}

// Stats holds aggregate counts of a graph.
type Stats struct {
	NodeCount   int              `json:"node_count"`
	EdgeCount   int              `json:"edge_count"`
	NodesByType map[NodeType]int `json:"nodes_by_type"`
	EdgesByType map[EdgeType]int `json:"edges_by_type"`
	ErrorCount  int              `json:"error_count"`
}

// SplitList splits a comma-separated metadata value, trimming blanks.
func SplitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList joins values into a sorted, de-duplicated metadata value.
func JoinList(values []string) string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
