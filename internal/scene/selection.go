package scene

type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectNode
	SelectEdge
)

// Selection names the state or transition the user is working on.
type Selection struct {
	Kind SelectionKind
	ID   string
}

func NodeSelection(id string) Selection { return Selection{Kind: SelectNode, ID: id} }
func EdgeSelection(id string) Selection { return Selection{Kind: SelectEdge, ID: id} }

func (s Selection) Empty() bool           { return s.Kind == SelectNone || s.ID == "" }
func (s Selection) IsNode(id string) bool { return s.Kind == SelectNode && s.ID == id }
func (s Selection) IsEdge(id string) bool { return s.Kind == SelectEdge && s.ID == id }
