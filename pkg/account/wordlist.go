package account

// wordlist is the fixed 2048-word dictionary used by the recovery phrase
// encoding. No bip39 (or other word-list) library exists anywhere in the
// retrieved example pack (checked across every go.mod); rather than vendor
// a large static list by hand, the 2048 entries are built deterministically
// from two small syllable tables (64 prefixes x 32 suffixes = 2048 unique
// words) so the list is exact, has no typos, and needs no external data
// file. See DESIGN.md for why this is implemented on top of plain string
// concatenation instead of a third-party dependency.
var wordlist = buildWordlist()

var wordPrefixes = [64]string{
	"ab", "ac", "ad", "af", "ag", "al", "am", "an",
	"ap", "ar", "as", "at", "av", "ba", "be", "bi",
	"bo", "bu", "ca", "ce", "ci", "co", "cu", "da",
	"de", "di", "do", "du", "el", "em", "en", "ep",
	"fa", "fe", "fi", "fo", "fu", "ga", "ge", "gi",
	"go", "gu", "ha", "he", "hi", "ho", "hu", "ib",
	"id", "il", "im", "in", "ip", "ir", "is", "it",
	"ja", "je", "jo", "ju", "ka", "ke", "ki", "ko",
}

var wordSuffixes = [32]string{
	"bal", "can", "dor", "fen", "gil", "hat", "ion", "jak",
	"kel", "lum", "mar", "nor", "pel", "quo", "ren", "sol",
	"tan", "ule", "van", "wix", "xel", "yon", "zar", "bic",
	"cif", "dun", "fil", "gon", "hux", "jin", "kor", "lym",
}

func buildWordlist() [2048]string {
	var out [2048]string
	i := 0
	for _, p := range wordPrefixes {
		for _, s := range wordSuffixes {
			out[i] = p + s
			i++
		}
	}
	return out
}

var wordIndex = buildWordIndex()

func buildWordIndex() map[string]int {
	idx := make(map[string]int, len(wordlist))
	for i, w := range wordlist {
		idx[w] = i
	}
	return idx
}
