package types

// AccountMeta describes one account an instruction touches and the privileges
// it is invoked with.
type AccountMeta struct {
	Pubkey     Pubkey `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

func NewAccountMeta(pk Pubkey, isSigner, isWritable bool) AccountMeta {
	return AccountMeta{
		Pubkey:     pk,
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
}

// Instruction is a single call into a program: the program id, the ordered
// accounts it may load and the opaque instruction data.
type Instruction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

func NewInstruction(programID Pubkey, accounts []AccountMeta, data []byte) *Instruction {
	return &Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	}
}
