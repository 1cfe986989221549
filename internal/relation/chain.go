package relation

// MaxChainLength bounds a chain; the longest real query (joint in hand, hand
// in tracking origin, origin in base space, base offset) is far shorter.
const MaxChainLength = 8

// Chain is an ordered list of relations, innermost first: link i is
// expressed in the frame that link i+1 describes. It lives for one
// resolution call.
type Chain struct {
	links [MaxChainLength]Relation
	n     int
}

// Push appends the next (outer) link. Pushing past MaxChainLength panics;
// chains are built by runtime code, never from application input.
func (c *Chain) Push(r Relation) {
	if c.n == MaxChainLength {
		panic("relation: chain too long")
	}
	c.links[c.n] = r
	c.n++
}

// PushPose appends a static pose offset, skipping exact identities.
func (c *Chain) PushPose(p Pose) {
	if p.IsIdentity() {
		return
	}
	c.Push(FromPose(p))
}

// PushInverse appends the inverse of r.
func (c *Chain) PushInverse(r Relation) {
	c.Push(r.Inverse())
}

// Len returns the number of links.
func (c *Chain) Len() int {
	return c.n
}

// Resolve composes the chain. An empty chain resolves to Identity().
func (c *Chain) Resolve() Relation {
	return Resolve(c.links[:c.n]...)
}

// Resolve composes links innermost first into a single relation. Order is
// significant: Resolve(a, b) is a expressed through b's frame.
func Resolve(links ...Relation) Relation {
	result := Identity()
	for _, link := range links {
		result = link.Compose(result)
	}
	return result
}
