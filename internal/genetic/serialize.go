package genetic

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/words"
)

// Serialisation carries traits, genotypes and genes across a process
// boundary as plain text, grounded on seni_text_buffer.c's cursor-based
// writer/reader (text_buffer_sprintf / text_buffer_eat_*): a Writer only
// ever appends, a Reader only ever consumes from its current position, and
// every token is separated by a single space so the reader's eat-nonspace
// equivalent (strings.Fields-style scanning) can find the next one.

// Writer is an append-only text cursor, the counterpart of
// seni_text_buffer's write-mode use.
type Writer struct {
	b strings.Builder
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) String() string { return w.b.String() }

func (w *Writer) token(s string) {
	if w.b.Len() > 0 {
		w.b.WriteByte(' ')
	}
	w.b.WriteString(s)
}

func (w *Writer) writeFloat(f float64) { w.token(strconv.FormatFloat(f, 'g', -1, 64)) }
func (w *Writer) writeInt(n int64)     { w.token(strconv.FormatInt(n, 10)) }
func (w *Writer) writeUint(n uint64)   { w.token(strconv.FormatUint(n, 10)) }

// Reader is a read-only cursor over a Writer's output, the counterpart of
// seni_text_buffer's eat-mode use; it never backtracks.
type Reader struct {
	fields []string
	pos    int
}

func NewReader(s string) *Reader { return &Reader{fields: strings.Fields(s)} }

func (r *Reader) next() (string, error) {
	if r.pos >= len(r.fields) {
		return "", errors.New(errors.Runtime, "serialisation: unexpected end of input")
	}
	tok := r.fields[r.pos]
	r.pos++
	return tok, nil
}

func (r *Reader) nextFloat() (float64, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(tok, 64)
}

func (r *Reader) nextInt() (int64, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(tok, 10, 64)
}

func (r *Reader) nextUint() (uint64, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(tok, 10, 64)
}

func (r *Reader) AtEnd() bool { return r.pos >= len(r.fields) }

// WriteValue type-tags v and appends it, recursing for VECTOR (length
// followed by elements, per spec) and writing COLOUR as format-tag plus
// four floats.
func WriteValue(w *Writer, heap *value.Heap, v value.Value) error {
	switch v.Kind {
	case value.KindInt:
		w.token("INT")
		w.writeFloat(v.AsFloat())
	case value.KindFloat:
		w.token("FLOAT")
		w.writeFloat(v.AsFloat())
	case value.KindBool:
		w.token("BOOL")
		if v.AsBool() {
			w.token("1")
		} else {
			w.token("0")
		}
	case value.KindLong:
		w.token("LONG")
		w.writeInt(v.Long)
	case value.KindName:
		w.token("NAME")
		w.writeUint(uint64(v.Iname))
	case value.KindColour:
		w.token("COLOUR")
		w.writeUint(uint64(v.Format))
		for _, f := range v.F {
			w.writeFloat(f)
		}
	case value.KindVector:
		if v.Pair {
			w.token("PAIR")
			w.writeFloat(v.F[0])
			w.writeFloat(v.F[1])
			return nil
		}
		w.token("VECTOR")
		elems := heap.Elements(v)
		w.writeInt(int64(len(elems)))
		for _, e := range elems {
			if err := WriteValue(w, heap, e); err != nil {
				return err
			}
		}
	case value.KindVoid:
		w.token("VOID")
	default:
		return errors.Newf(errors.Runtime, "serialisation: cannot write value kind %s", v.Kind)
	}
	return nil
}

// ReadValue is WriteValue's symmetric reader.
func ReadValue(r *Reader, heap *value.Heap) (value.Value, error) {
	tag, err := r.next()
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case "INT":
		f, err := r.nextFloat()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(f)), nil
	case "FLOAT":
		f, err := r.nextFloat()
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case "BOOL":
		n, err := r.nextInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(n != 0), nil
	case "LONG":
		n, err := r.nextInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Long(n), nil
	case "NAME":
		n, err := r.nextUint()
		if err != nil {
			return value.Value{}, err
		}
		return value.Name(words.Iname(n)), nil
	case "COLOUR":
		fmtTag, err := r.nextUint()
		if err != nil {
			return value.Value{}, err
		}
		var fs [4]float64
		for i := range fs {
			fs[i], err = r.nextFloat()
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.Colour(value.ColourFormat(fmtTag), fs[0], fs[1], fs[2], fs[3]), nil
	case "PAIR":
		x, err := r.nextFloat()
		if err != nil {
			return value.Value{}, err
		}
		y, err := r.nextFloat()
		if err != nil {
			return value.Value{}, err
		}
		return value.Pair2D(x, y), nil
	case "VECTOR":
		n, err := r.nextInt()
		if err != nil {
			return value.Value{}, err
		}
		elems := make([]value.Value, n)
		for i := range elems {
			elems[i], err = ReadValue(r, heap)
			if err != nil {
				return value.Value{}, err
			}
		}
		return heap.BuildVector(elems)
	case "VOID":
		return value.Void(), nil
	default:
		return value.Value{}, errors.Newf(errors.Runtime, "serialisation: unknown value tag %q", tag)
	}
}

// SerializeGenotype writes a genotype's id and every gene, in order, as a
// single text blob.
func SerializeGenotype(heap *value.Heap, g *Genotype) (string, error) {
	w := NewWriter()
	w.token(g.ID.String())
	w.writeInt(int64(len(g.Genes)))
	for _, gene := range g.Genes {
		if err := WriteValue(w, heap, gene); err != nil {
			return "", err
		}
	}
	return w.String(), nil
}

// DeserializeGenotype is SerializeGenotype's symmetric reader.
func DeserializeGenotype(heap *value.Heap, s string) (*Genotype, error) {
	r := NewReader(s)
	idTok, err := r.next()
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idTok)
	if err != nil {
		return nil, err
	}
	n, err := r.nextInt()
	if err != nil {
		return nil, err
	}
	genes := make([]value.Value, n)
	for i := range genes {
		genes[i], err = ReadValue(r, heap)
		if err != nil {
			return nil, err
		}
	}
	return &Genotype{ID: id, Genes: genes}, nil
}
