package dictionary

// trie is a per-language prefix tree. Nodes own their children by character;
// the terminal flag marks a complete word ending at that node.
type trie struct {
	root  *trieNode
	words int
}

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

func newTrie() *trie {
	return &trie{root: &trieNode{}}
}

// insert adds a word. The caller is responsible for normalization.
func (t *trie) insert(word string) {
	node := t.root
	for _, r := range word {
		child, ok := node.children[r]
		if !ok {
			if node.children == nil {
				node.children = make(map[rune]*trieNode)
			}
			child = &trieNode{}
			node.children[r] = child
		}
		node = child
	}
	if !node.terminal {
		node.terminal = true
		t.words++
	}
}

// walk descends along the given string, returning nil when the path leaves
// the tree.
func (t *trie) walk(s string) *trieNode {
	node := t.root
	for _, r := range s {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

func (t *trie) hasPrefix(prefix string) bool {
	return t.walk(prefix) != nil
}

func (t *trie) hasWord(word string) bool {
	node := t.walk(word)
	return node != nil && node.terminal
}
