package model

// AssignmentDefinition はClassroom APIから取得した課題定義を表す。
// 読み取り専用として扱い、一覧の順序は上流の返却順を保持する。
type AssignmentDefinition struct {
	Slug          string // 一意なスラグ（タイトル由来、または上流が直接付与）
	Title         string
	Deadline      string // ISO-8601。空文字列は締切なしを意味する
	AcceptedCount int    // 課題を受諾した学生数
}

// HasDeadline は課題に締切が設定されているかどうかを返す。
func (a *AssignmentDefinition) HasDeadline() bool {
	return a.Deadline != ""
}

// Accepted は課題が1人以上の学生に受諾されているかどうかを返す。
// 未受諾の課題は同期対象から除外される。
func (a *AssignmentDefinition) Accepted() bool {
	return a.AcceptedCount >= 1
}
