package builtin

import (
	"bytes"

	"github.com/rs/zerolog"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/store/kv"
	"golang.org/x/xerrors"
)

const (
	// RegisterName is the default name of the register operation type.
	RegisterName = "register"

	// ResultOK is the result code of a valid assignment.
	ResultOK optype.ResultType = 0

	// ResultMalformed is the result code of a payload that is not an
	// assignment.
	ResultMalformed optype.ResultType = 1
)

var defaultBucket = []byte("register")

// RegisterOption is the type of option to create a register.
type RegisterOption func(*Register)

// WithRegisterName sets the name of the operation type.
func WithRegisterName(name string) RegisterOption {
	return func(r *Register) {
		r.name = name
	}
}

// WithBucket sets the bucket where the values are stored.
func WithBucket(bucket []byte) RegisterOption {
	return func(r *Register) {
		r.bucket = bucket
	}
}

// Register is a replicated key/value register. A payload is an assignment of
// the form "key=value". The miners must propose the same assignment, and the
// value is written in the database when it is valid on every miner.
//
// - implements optype.OperationType
type Register struct {
	name   string
	bucket []byte
	db     kv.DB
	logger zerolog.Logger
}

// NewRegister returns a register storing its values in the database.
func NewRegister(db kv.DB, opts ...RegisterOption) Register {
	r := Register{
		name:   RegisterName,
		bucket: defaultBucket,
		db:     db,
	}

	for _, opt := range opts {
		opt(&r)
	}

	r.logger = concord.Logger.With().Str("optype", r.name).Logger()

	return r
}

// GetName implements optype.OperationType. It returns the name of the
// register.
func (r Register) GetName() string {
	return r.name
}

// Equivalent implements optype.OperationType. It returns true when every miner
// proposed the same assignment.
func (r Register) Equivalent(proposals []optype.Datum) bool {
	return AllIdentical(proposals)
}

// Execute implements optype.OperationType. It validates the assignment. The
// callback is ignored.
func (r Register) Execute(proposals []optype.Datum, callback interface{}) optype.ResultType {
	if len(proposals) == 0 {
		return ResultMalformed
	}

	_, _, err := ParseAssignment(proposals[0])
	if err != nil {
		return ResultMalformed
	}

	return ResultOK
}

// Commit implements optype.OperationType. It writes the value when every miner
// validated the assignment. A failure to write is logged as the commit cannot
// be refused at this stage.
func (r Register) Commit(proposals []optype.Datum, results []optype.ResultType, callback interface{}) {
	for _, res := range results {
		if res != ResultOK {
			r.logger.Debug().Msg("assignment is not valid on every miner")
			return
		}
	}

	key, value, err := ParseAssignment(proposals[0])
	if err != nil {
		r.logger.Warn().Err(err).Msg("invalid assignment")
		return
	}

	err = r.db.Update(r.bucket, func(b kv.Bucket) error {
		return b.Set(key, value)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to write the value")
		return
	}

	r.logger.Debug().Bytes("key", key).Msg("value committed")
}

// Get returns the value committed for the key, or nil if it does not exist.
func (r Register) Get(key []byte) ([]byte, error) {
	var value []byte

	err := r.db.View(r.bucket, func(b kv.Bucket) error {
		v := b.Get(key)
		if v != nil {
			value = append([]byte{}, v...)
		}

		return nil
	})

	// The bucket only exists after the first commit.
	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	return value, nil
}

// Entries returns a copy of every committed key and its value.
func (r Register) Entries() (map[string][]byte, error) {
	entries := make(map[string][]byte)

	err := r.db.View(r.bucket, func(b kv.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			entries[string(k)] = append([]byte{}, v...)
			return nil
		})
	})

	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return entries, nil
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	return entries, nil
}

// ParseAssignment returns the key and the value of an assignment "key=value".
// The key must not be empty, the value can.
func ParseAssignment(data []byte) ([]byte, []byte, error) {
	index := bytes.IndexByte(data, '=')
	if index < 0 {
		return nil, nil, xerrors.New("missing separator")
	}

	if index == 0 {
		return nil, nil, xerrors.New("key is empty")
	}

	return data[:index], data[index+1:], nil
}
