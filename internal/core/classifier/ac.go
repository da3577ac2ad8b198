package classifier

// automaton is a byte-level Aho-Corasick matcher over folded keyword terms.
// Keyword sets are small, so transitions live in per-node maps and the
// failure function is resolved while scanning
type automaton struct {
	next []map[byte]int
	fail []int
	out  [][]int // keyword ids ending at each state, fail outputs merged in
	lens []int   // byte length per keyword id
}

func newAutomaton() *automaton {
	a := &automaton{}
	a.addState()
	return a
}

func (a *automaton) addState() int {
	a.next = append(a.next, map[byte]int{})
	a.fail = append(a.fail, 0)
	a.out = append(a.out, nil)
	return len(a.next) - 1
}

// add inserts term under id; ids must be dense from zero
func (a *automaton) add(term string, id int) {
	for len(a.lens) <= id {
		a.lens = append(a.lens, 0)
	}
	a.lens[id] = len(term)
	if term == "" {
		return
	}
	s := 0
	for i := 0; i < len(term); i++ {
		nx, ok := a.next[s][term[i]]
		if !ok {
			nx = a.addState()
			a.next[s][term[i]] = nx
		}
		s = nx
	}
	a.out[s] = append(a.out[s], id)
}

// build computes failure links breadth first
func (a *automaton) build() {
	queue := make([]int, 0, len(a.next))
	for _, s := range a.next[0] {
		a.fail[s] = 0
		queue = append(queue, s)
	}
	for qi := 0; qi < len(queue); qi++ {
		r := queue[qi]
		for b, s := range a.next[r] {
			queue = append(queue, s)
			f := a.fail[r]
			for f != 0 {
				if _, ok := a.next[f][b]; ok {
					break
				}
				f = a.fail[f]
			}
			if nx, ok := a.next[f][b]; ok && nx != s {
				a.fail[s] = nx
			}
			a.out[s] = append(a.out[s], a.out[a.fail[s]]...)
		}
	}
}

func (a *automaton) step(s int, b byte) int {
	for {
		if nx, ok := a.next[s][b]; ok {
			return nx
		}
		if s == 0 {
			return 0
		}
		s = a.fail[s]
	}
}

// scan reports every (start, end, id) match in text until fn returns false
func (a *automaton) scan(text string, fn func(start, end, id int) bool) {
	if len(a.next[0]) == 0 {
		return
	}
	s := 0
	for i := 0; i < len(text); i++ {
		s = a.step(s, text[i])
		for _, id := range a.out[s] {
			end := i + 1
			if !fn(end-a.lens[id], end, id) {
				return
			}
		}
	}
}
