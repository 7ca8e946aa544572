package fuzztests

import "testing"

const maxFuzzInput = 1 << 16 // 64 KiB

// addCorpusSeeds регистрирует минимальный корпус: по примеру на каждую
// конструкцию диалекта плюс заведомо битые входы.
func addCorpusSeeds(f *testing.F) {
	seeds := []string{
		"",
		"let x = 1;",
		"const greeting: string = \"hi\";",
		"function add(a: number, b: number): number { return a + b; }",
		"export const limit: number = 10;",
		"export function id(x: any): any { return x; }",
		"import { add, mul } from \"./math\";",
		"if (x < 10) { log(x); } else { log(\"big\"); }",
		"while (i < 5) { i = i + 1; }",
		"throw \"boom\";",
		"let k: 123 = 123;\nlet s: \"tag\" = \"tag\";",
		"mod.helper(1)(\"x\")[0];",
		"a && b || !c;",
		// Входы, на которых восстановление после ошибки обязано завершаться.
		"let = 1;",
		"let x = ;",
		"const x: number;",
		"\"unterminated",
		"123abc",
		"function f( { }",
		"((((((((((",
		"}}}}}}}}",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		return append([]byte(nil), input[:maxFuzzInput]...)
	}
	return append([]byte(nil), input...)
}
