package device

// Joint and expression counts per set.
const (
	HandJointCount            = 26
	BodyJointCountFB          = 70
	BodyJointCountFullBody    = 84
	EyeExpressionCountHTC     = 14
	LipExpressionCountHTC     = 37
	ForceFeedbackLocationsMax = 5
)

// Layout maps between API element order and the order a device reports.
// Devices do not share the API's ordering, so every copy out to the
// application goes through a Layout.
type Layout struct {
	toNative []int
	toAPI    []int
}

func newLayout(toNative []int) Layout {
	toAPI := make([]int, len(toNative))
	for api, native := range toNative {
		toAPI[native] = api
	}
	return Layout{toNative: toNative, toAPI: toAPI}
}

// Count is the number of elements in the set.
func (l Layout) Count() int { return len(l.toNative) }

// Native returns the device index holding API element i.
func (l Layout) Native(i int) int { return l.toNative[i] }

// API returns the API index of native element i, or -1 for out of range
// values such as a root's parent.
func (l Layout) API(i int) int {
	if i < 0 || i >= len(l.toAPI) {
		return -1
	}
	return l.toAPI[i]
}

// Hands report wrist before palm; the API lists palm first.
var HandLayout = func() Layout {
	m := identity(HandJointCount)
	m[0], m[1] = 1, 0
	return newLayout(m)
}()

// Body devices root their skeleton at the hips and report the tracking
// root last; the API lists the root first.
func bodyLayout(count int) Layout {
	m := make([]int, count)
	m[0] = count - 1
	for i := 1; i < count; i++ {
		m[i] = i - 1
	}
	return newLayout(m)
}

var (
	BodyLayoutFB       = bodyLayout(BodyJointCountFB)
	BodyLayoutFullBody = bodyLayout(BodyJointCountFullBody)
)

// BodyLayout returns the layout for a joint set.
func BodyLayout(set BodyJointSetType) Layout {
	if set == BodyJointSetFullBody {
		return BodyLayoutFullBody
	}
	return BodyLayoutFB
}

// Eye trackers group expressions per eye (left blink, wide, squeeze, down,
// out, in, up, then the same for the right eye). The API interleaves them.
var EyeLayoutHTC = newLayout([]int{
	0,  // left blink
	1,  // left wide
	7,  // right blink
	8,  // right wide
	2,  // left squeeze
	9,  // right squeeze
	3,  // left down
	10, // right down
	4,  // left out
	12, // right in
	5,  // left in
	11, // right out
	6,  // left up
	13, // right up
})

// Lip trackers already use API order.
var LipLayoutHTC = newLayout(identity(LipExpressionCountHTC))

func identity(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}
