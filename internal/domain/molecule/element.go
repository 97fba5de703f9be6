package molecule

// element describes the properties of a chemical element needed for parsing
// and valence checks.
type element struct {
	Symbol       string
	AtomicNumber int
	// Valences lists the permitted total valences in ascending order.
	// An empty list disables the valence check for the element.
	Valences []int
}

// MaxValence returns the largest permitted valence, or -1 when unchecked.
func (e *element) MaxValence() int {
	if len(e.Valences) == 0 {
		return -1
	}
	return e.Valences[len(e.Valences)-1]
}

var elementTable = []element{
	{"*", 0, nil},
	{"H", 1, []int{1}},
	{"He", 2, []int{0}},
	{"Li", 3, []int{1}},
	{"Be", 4, []int{2}},
	{"B", 5, []int{3}},
	{"C", 6, []int{4}},
	{"N", 7, []int{3}},
	{"O", 8, []int{2}},
	{"F", 9, []int{1}},
	{"Ne", 10, []int{0}},
	{"Na", 11, []int{1}},
	{"Mg", 12, []int{2}},
	{"Al", 13, []int{3}},
	{"Si", 14, []int{4}},
	{"P", 15, []int{3, 5, 7}},
	{"S", 16, []int{2, 4, 6}},
	{"Cl", 17, []int{1}},
	{"Ar", 18, []int{0}},
	{"K", 19, []int{1}},
	{"Ca", 20, []int{2}},
	{"Sc", 21, nil},
	{"Ti", 22, nil},
	{"V", 23, nil},
	{"Cr", 24, nil},
	{"Mn", 25, nil},
	{"Fe", 26, nil},
	{"Co", 27, nil},
	{"Ni", 28, nil},
	{"Cu", 29, nil},
	{"Zn", 30, nil},
	{"Ga", 31, []int{3}},
	{"Ge", 32, []int{4}},
	{"As", 33, []int{3, 5, 7}},
	{"Se", 34, []int{2, 4, 6}},
	{"Br", 35, []int{1}},
	{"Kr", 36, []int{0}},
	{"Rb", 37, []int{1}},
	{"Sr", 38, []int{2}},
	{"Y", 39, nil},
	{"Zr", 40, nil},
	{"Nb", 41, nil},
	{"Mo", 42, nil},
	{"Tc", 43, nil},
	{"Ru", 44, nil},
	{"Rh", 45, nil},
	{"Pd", 46, nil},
	{"Ag", 47, nil},
	{"Cd", 48, nil},
	{"In", 49, []int{3}},
	{"Sn", 50, []int{2, 4}},
	{"Sb", 51, []int{3, 5}},
	{"Te", 52, []int{2, 4, 6}},
	{"I", 53, []int{1, 3, 5}},
	{"Xe", 54, nil},
	{"Cs", 55, []int{1}},
	{"Ba", 56, []int{2}},
	{"La", 57, nil},
	{"Ce", 58, nil},
	{"Pr", 59, nil},
	{"Nd", 60, nil},
	{"Pm", 61, nil},
	{"Sm", 62, nil},
	{"Eu", 63, nil},
	{"Gd", 64, nil},
	{"Tb", 65, nil},
	{"Dy", 66, nil},
	{"Ho", 67, nil},
	{"Er", 68, nil},
	{"Tm", 69, nil},
	{"Yb", 70, nil},
	{"Lu", 71, nil},
	{"Hf", 72, nil},
	{"Ta", 73, nil},
	{"W", 74, nil},
	{"Re", 75, nil},
	{"Os", 76, nil},
	{"Ir", 77, nil},
	{"Pt", 78, nil},
	{"Au", 79, nil},
	{"Hg", 80, nil},
	{"Tl", 81, nil},
	{"Pb", 82, nil},
	{"Bi", 83, []int{3, 5}},
	{"Po", 84, []int{2, 4, 6}},
	{"At", 85, []int{1}},
	{"Rn", 86, nil},
	{"Fr", 87, []int{1}},
	{"Ra", 88, []int{2}},
	{"Ac", 89, nil},
	{"Th", 90, nil},
	{"Pa", 91, nil},
	{"U", 92, nil},
	{"Np", 93, nil},
	{"Pu", 94, nil},
	{"Am", 95, nil},
	{"Cm", 96, nil},
	{"Bk", 97, nil},
	{"Cf", 98, nil},
	{"Es", 99, nil},
	{"Fm", 100, nil},
	{"Md", 101, nil},
	{"No", 102, nil},
	{"Lr", 103, nil},
	{"Rf", 104, nil},
	{"Db", 105, nil},
	{"Sg", 106, nil},
	{"Bh", 107, nil},
	{"Hs", 108, nil},
	{"Mt", 109, nil},
	{"Ds", 110, nil},
	{"Rg", 111, nil},
	{"Cn", 112, nil},
	{"Nh", 113, nil},
	{"Fl", 114, nil},
	{"Mc", 115, nil},
	{"Lv", 116, nil},
	{"Ts", 117, nil},
	{"Og", 118, nil},
}

var (
	elementsBySymbol = make(map[string]*element, len(elementTable))
	elementsByNumber = make(map[int]*element, len(elementTable))
)

func init() {
	for i := range elementTable {
		e := &elementTable[i]
		elementsBySymbol[e.Symbol] = e
		elementsByNumber[e.AtomicNumber] = e
	}
}

// organicSubset holds the symbols that may appear outside brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true, "*": true,
}

// aromaticSymbols maps the lowercase aromatic spellings to element symbols.
// Only b, c, n, o, p and s are allowed outside brackets.
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As", "te": "Te",
}

// Atomic numbers used by the scorers and feature invariants.
const (
	AtomicNumberCarbon   = 6
	AtomicNumberNitrogen = 7
	AtomicNumberOxygen   = 8
	AtomicNumberFluorine = 9
	AtomicNumberPhospho  = 15
	AtomicNumberSulphur  = 16
	AtomicNumberChlorine = 17
	AtomicNumberBromine  = 35
	AtomicNumberIodine   = 53
)

// ElementSymbol returns the symbol for an atomic number, or "?" when unknown.
func ElementSymbol(z int) string {
	if e, ok := elementsByNumber[z]; ok {
		return e.Symbol
	}
	return "?"
}

// isoelectronicValences returns the permitted valences of an atom with
// atomic number z and formal charge q, using the element with z-q electrons.
// ok is false when the valence is unchecked.
func isoelectronicValences(z, q int) ([]int, bool) {
	if z == 0 {
		return nil, false
	}
	e, ok := elementsByNumber[z-q]
	if !ok || len(e.Valences) == 0 {
		return nil, false
	}
	return e.Valences, true
}
