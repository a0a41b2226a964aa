package domain

import "slices"

// Option is a candidate choice. Votes always equals len(Voters); it is kept
// as a field only so snapshots carry the count.
type Option struct {
	Name   string   `json:"name"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters"`
}

func newOption(name string) Option {
	return Option{Name: name, Voters: []string{}}
}

func (o *Option) HasVoter(userName string) bool {
	return slices.Contains(o.Voters, userName)
}

func (o *Option) addVoter(userName string) bool {
	if o.HasVoter(userName) {
		return false
	}
	o.Voters = append(o.Voters, userName)
	o.Votes = len(o.Voters)
	return true
}

func (o *Option) removeVoter(userName string) bool {
	idx := slices.Index(o.Voters, userName)
	if idx == -1 {
		return false
	}
	o.Voters = slices.Delete(o.Voters, idx, idx+1)
	o.Votes = len(o.Voters)
	return true
}
