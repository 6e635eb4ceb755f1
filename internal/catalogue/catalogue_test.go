package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrStr(s string) *string { return &s }

const sampleYAML = `
products:
  - name: Whole genome
    processes:
      - name: Library prep
        modules: [Fragment, Quick prep, Ligate]
        pairings:
          - {to: Fragment, default: true}
          - {from: Fragment, to: Ligate, default: true}
          - {from: Ligate, default: true}
          - {to: Quick prep}
          - {from: Quick prep}
      - name: Sequencing
        modules: [Run]
        pairings:
          - {to: Run, default: true}
          - {from: Run, default: true}
`

func validMinimalFile() *File {
	return &File{Products: []ProductImport{{
		Name: "P",
		Processes: []ProcessImport{{
			Name:    "Proc",
			Modules: []string{"A"},
			Pairings: []PairingImport{
				{To: ptrStr("A"), Default: true},
				{From: ptrStr("A"), Default: true},
			},
		}},
	}}}
}

func TestParse_Sample(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, f.Products, 1)
	p := f.Products[0]
	assert.Equal(t, "Whole genome", p.Name)
	require.Len(t, p.Processes, 2)
	assert.Equal(t, []string{"Fragment", "Quick prep", "Ligate"}, p.Processes[0].Modules)
	assert.Nil(t, p.Processes[0].Pairings[0].From)
	assert.Equal(t, "Fragment", *p.Processes[0].Pairings[0].To)
	assert.True(t, p.Processes[0].Pairings[0].Default)
	assert.Empty(t, Validate(f))
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("products:\n  - name: X\n    colour: blue\n"))
	require.Error(t, err)
}

func TestParse_RejectsEmptyFile(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Products, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_ValidMinimal(t *testing.T) {
	assert.Empty(t, Validate(validMinimalFile()))
}

func TestValidate_NoProducts(t *testing.T) {
	errs := Validate(&File{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "at least one product")
}

func TestValidate_DuplicateProduct(t *testing.T) {
	f := validMinimalFile()
	f.Products = append(f.Products, f.Products[0])
	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "duplicate product")
}

func TestValidate_UnknownModuleInPairing(t *testing.T) {
	f := validMinimalFile()
	proc := &f.Products[0].Processes[0]
	proc.Pairings = append(proc.Pairings, PairingImport{From: ptrStr("A"), To: ptrStr("Z")})
	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `unknown module "Z"`)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	f := &File{Products: []ProductImport{{
		Processes: []ProcessImport{{
			Modules:  []string{"A", "A"},
			Pairings: []PairingImport{{}},
		}},
	}}}
	errs := Validate(f)
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, "products[0].name is required")
	assert.Contains(t, msgs, "products[0].processes[0].name is required")
	assert.Contains(t, msgs, `products[0].processes[0].modules[1]: duplicate module "A"`)
	assert.Contains(t, msgs, "products[0].processes[0].pairings[0]: from or to is required")
	assert.Contains(t, msgs, "products[0].processes[0].pairings: no pairing starts the process")
}

func TestValidate_DefaultStartMustBeUnique(t *testing.T) {
	f := validMinimalFile()
	proc := &f.Products[0].Processes[0]
	proc.Pairings[0].Default = false
	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "exactly one default pairing")
}

func TestConvert_BuildsGraph(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	products, err := Convert(f)
	require.NoError(t, err)
	require.Len(t, products, 1)

	prep := products[0].Processes[0]
	assert.Equal(t, 0, prep.Stage)
	assert.Equal(t, 1, products[0].Processes[1].Stage)
	require.Len(t, prep.Modules, 3)
	require.Len(t, prep.Pairings, 5)

	path, err := prep.DefaultPath()
	require.NoError(t, err)
	require.Len(t, path, 2)
	first, _ := prep.ModuleName(path[0])
	second, _ := prep.ModuleName(path[1])
	assert.Equal(t, "Fragment", first)
	assert.Equal(t, "Ligate", second)

	quick := prep.Modules[1].ID
	assert.NoError(t, prep.ValidatePath([]string{quick}))
}

func TestConvert_BrokenDefaultPath(t *testing.T) {
	f := validMinimalFile()
	proc := &f.Products[0].Processes[0]
	proc.Pairings[1].Default = false
	_, err := Convert(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default path")
}
