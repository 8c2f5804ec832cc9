package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	MaxStateVars       = 20
	MaxLiquidStateVars = 5
)

// Record is the fixed layout of one particle, shared by restart files and rank to rank
// migration. Field order is the wire order, all values little endian without padding.
type Record struct {
	ID       uint64
	Mass     float64
	Volume   float64
	Pressure float64

	Coord        [3]float64
	RefCoord     [3]float64
	Displacement [3]float64
	NaturalSize  [3]float64
	Velocity     [3]float64
	Acceleration [3]float64

	Stress              [6]float64 // Voigt xx, yy, zz, xy, yz, zx
	Strain              [6]float64
	VolumetricStrain    float64
	DeformationGradient [9]float64 // row major

	Status     uint8
	CellID     uint64
	MaterialID uint32
	NStateVars uint32
	StateVars  [MaxStateVars]float64
}

// TwoPhaseRecord appends the liquid phase to the solid record
type TwoPhaseRecord struct {
	Record
	LiquidMass       float64
	LiquidVelocity   [3]float64
	Porosity         float64
	LiquidSaturation float64
	LiquidMaterialID uint32
	NLiquidStateVars uint32
	LiquidStateVars  [MaxLiquidStateVars]float64
}

type Kind uint32

const (
	KindSinglePhase Kind = 1
	KindTwoPhase    Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindSinglePhase:
		return "single phase"
	case KindTwoPhase:
		return "two phase"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

type Records interface {
	Record | TwoPhaseRecord
}

var (
	RecordSize         = binary.Size(Record{})
	TwoPhaseRecordSize = binary.Size(TwoPhaseRecord{})
)

func KindOf[T Records]() Kind {
	var zero T
	if _, ok := any(zero).(TwoPhaseRecord); ok {
		return KindTwoPhase
	}
	return KindSinglePhase
}

func SizeOf[T Records]() int {
	if KindOf[T]() == KindTwoPhase {
		return TwoPhaseRecordSize
	}
	return RecordSize
}

func Encode[T Records](recs []T) (data []byte, err error) {
	var buf bytes.Buffer
	buf.Grow(len(recs) * SizeOf[T]())
	if err = binary.Write(&buf, binary.LittleEndian, recs); err != nil {
		return nil, fmt.Errorf("encode %d particle records: %w", len(recs), err)
	}
	return buf.Bytes(), nil
}

func Decode[T Records](data []byte) (recs []T, err error) {
	size := SizeOf[T]()
	if len(data)%size != 0 {
		return nil, fmt.Errorf("particle payload of %d bytes is not a multiple of the %d byte record",
			len(data), size)
	}
	recs = make([]T, len(data)/size)
	if err = binary.Read(bytes.NewReader(data), binary.LittleEndian, recs); err != nil {
		return nil, fmt.Errorf("decode %d particle records: %w", len(recs), err)
	}
	return
}
