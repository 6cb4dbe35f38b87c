package extractor

import "testing"

func imports(t *testing.T, source string) []Import {
	t.Helper()
	got, err := Extract("test.ts", []byte(source))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return got
}

func TestStaticImport(t *testing.T) {
	got := imports(t, `import { foo } from './foo';`)
	if len(got) != 1 {
		t.Fatalf("got %d imports, want 1: %+v", len(got), got)
	}
	if got[0].Specifier != "./foo" || got[0].Kind != KindStatic {
		t.Fatalf("got %+v", got[0])
	}
}

func TestDefaultImport(t *testing.T) {
	got := imports(t, `import foo from './foo';`)
	if len(got) != 1 || got[0].Specifier != "./foo" {
		t.Fatalf("got %+v", got)
	}
}

func TestNamespaceImport(t *testing.T) {
	got := imports(t, `import * as foo from './foo';`)
	if len(got) != 1 || got[0].Specifier != "./foo" {
		t.Fatalf("got %+v", got)
	}
}

func TestDynamicImport(t *testing.T) {
	got := imports(t, `const foo = import('./foo');`)
	if len(got) != 1 {
		t.Fatalf("got %d imports, want 1: %+v", len(got), got)
	}
	if got[0].Specifier != "./foo" || got[0].Kind != KindDynamic {
		t.Fatalf("got %+v", got[0])
	}
}

func TestRequire(t *testing.T) {
	got := imports(t, `const foo = require('./foo');`)
	if len(got) != 1 || got[0].Kind != KindRequire || got[0].Specifier != "./foo" {
		t.Fatalf("got %+v", got)
	}
}

func TestReExportNamed(t *testing.T) {
	got := imports(t, `export { foo } from './foo';`)
	if len(got) != 1 || got[0].Kind != KindReexport || got[0].Specifier != "./foo" {
		t.Fatalf("got %+v", got)
	}
}

func TestReExportAll(t *testing.T) {
	got := imports(t, `export * from './foo';`)
	if len(got) != 1 || got[0].Kind != KindReexport || got[0].Specifier != "./foo" {
		t.Fatalf("got %+v", got)
	}
}

func TestMultipleImports(t *testing.T) {
	got := imports(t, `
		import { a } from './a';
		import b from './b';
		const c = require('./c');
		export * from './d';
	`)
	if len(got) != 4 {
		t.Fatalf("got %d imports, want 4: %+v", len(got), got)
	}
}

func TestRequireInsideAwait(t *testing.T) {
	got := imports(t, `
		async function load() {
			const mod = await require('./lazy');
			return mod;
		}
	`)
	if len(got) != 1 || got[0].Specifier != "./lazy" {
		t.Fatalf("got %+v", got)
	}
}

func TestNonLiteralSpecifiersIgnored(t *testing.T) {
	got := imports(t, `
		const name = './foo';
		const foo = require(name);
	`)
	if len(got) != 0 {
		t.Fatalf("got %d imports, want 0 for non-literal require: %+v", len(got), got)
	}
}

func TestTypeScriptOnlyConstructsParseCleanly(t *testing.T) {
	got, err := Extract("test.ts", []byte(`
		export type Foo = { a: string };
		interface Bar { b: number }
		enum Baz { A, B }
		import { x } from './x';
	`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0].Specifier != "./x" {
		t.Fatalf("got %+v, want only the value import", got)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	if _, err := Extract("test.py", []byte("import foo")); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}
