package tiny

import "fmt"

// Config is a typed settings map in the teacher's style (config.go): every
// value is tagged with the type it was set as, and retrieving it under a
// different type panics. These are programmer errors, not user input, the
// same judgment call the teacher makes for its grammar-loader flags.
type Config map[string]*cfgVal

// NewConfig returns a Config primed with the defaults this compiler and VM
// need: the original's compile-time #define constants (TINY_THREAD_STACK_SIZE,
// TINY_THREAD_MAX_CALL_DEPTH) become runtime-configurable settings here,
// since a Go embedder configures a State at construction time rather than
// at compile time.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("compiler.optimize", 1)
	m.SetInt("vm.stack_size", 256)
	m.SetInt("vm.max_call_depth", 64)
	m.SetInt("vm.max_objects", 64)
	m.SetFloat("vm.gc_growth_factor", 2.0)
	return &m
}

type cfgValType int

const (
	cfgValUndefined cfgValType = iota
	cfgValInt
	cfgValFloat
	cfgValBool
	cfgValString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValUndefined: "undefined",
		cfgValInt:       "int",
		cfgValFloat:     "float",
		cfgValBool:      "bool",
		cfgValString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asInt    int
	asFloat  float64
	asBool   bool
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValUndefined {
		panic(fmt.Sprintf("can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve `%s` from `%s` setting", vt, v.typ))
	}
}

func (c *Config) SetInt(path string, v int) {
	val := &cfgVal{}
	val.assignType(cfgValInt)
	val.asInt = v
	(*c)[path] = val
}

func (c *Config) SetFloat(path string, v float64) {
	val := &cfgVal{}
	val.assignType(cfgValFloat)
	val.asFloat = v
	(*c)[path] = val
}

func (c *Config) SetBool(path string, v bool) {
	val := &cfgVal{}
	val.assignType(cfgValBool)
	val.asBool = v
	(*c)[path] = val
}

func (c *Config) SetString(path string, v string) {
	val := &cfgVal{}
	val.assignType(cfgValString)
	val.asString = v
	(*c)[path] = val
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValInt)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting `%s` does not exist", path))
}

func (c *Config) GetFloat(path string) float64 {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValFloat)
		return val.asFloat
	}
	panic(fmt.Sprintf("float setting `%s` does not exist", path))
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValBool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValString)
		return val.asString
	}
	panic(fmt.Sprintf("string setting `%s` does not exist", path))
}
