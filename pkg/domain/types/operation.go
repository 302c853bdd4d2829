package types

// TaskOp is an operation an actor may attempt on a task
type TaskOp string

const (
	TaskOpRead           TaskOp = "read"
	TaskOpUpdate         TaskOp = "update"
	TaskOpDelete         TaskOp = "delete"
	TaskOpUploadDocument TaskOp = "uploadDocument"
	// TaskOpAssign covers changing the assignee of an existing task.
	TaskOpAssign TaskOp = "assign"
)

// DocumentOp is an operation an actor may attempt on a document
type DocumentOp string

const (
	// DocumentOpRead covers listing, downloading and inline viewing.
	DocumentOpRead   DocumentOp = "read"
	DocumentOpDelete DocumentOp = "delete"
)

// UserOp is an operation an actor may attempt on a user record
type UserOp string

const (
	UserOpViewList       UserOp = "viewList"
	UserOpViewOne        UserOp = "viewOne"
	UserOpUpdate         UserOp = "update"
	UserOpDelete         UserOp = "delete"
	UserOpChangeRole     UserOp = "changeRole"
	UserOpChangeActive   UserOp = "changeActive"
	UserOpChangePassword UserOp = "changePassword"
)

// OpenMode selects how document bytes are served
type OpenMode string

const (
	// OpenModeDownload serves as attachment and counts the download.
	OpenModeDownload OpenMode = "download"
	// OpenModeView serves inline without counting.
	OpenModeView OpenMode = "view"
)
