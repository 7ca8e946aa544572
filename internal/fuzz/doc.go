// Package fuzztests houses Go fuzz harnesses that exercise the compilation
// pipeline (source -> lexer -> parser -> checker -> emit). Its goal is to
// smoke test robustness and guard against panics on arbitrary inputs.
//
// Назначение: загружать байты в FileSet и прогонять их через весь конвейер
// компиляции вплоть до эмита.
//
// Не делает: генерацию корпусов, запись файлов, исполнение на хосте.
//
// Зависимости: internal/source, internal/lexer, internal/parser,
// internal/sema, internal/emit, internal/diag.

package fuzztests
