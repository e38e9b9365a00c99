package engine

import "chess-worker/rules"

// flipView mirrors a square vertically so black pieces read white-oriented tables.
var flipView = [64]int{
	56, 57, 58, 59, 60, 61, 62, 63,
	48, 49, 50, 51, 52, 53, 54, 55,
	40, 41, 42, 43, 44, 45, 46, 47,
	32, 33, 34, 35, 36, 37, 38, 39,
	24, 25, 26, 27, 28, 29, 30, 31,
	16, 17, 18, 19, 20, 21, 22, 23,
	8, 9, 10, 11, 12, 13, 14, 15,
	0, 1, 2, 3, 4, 5, 6, 7,
}

// Game phase weights for interpolation
const (
	PawnPhase   = 0
	KnightPhase = 1
	BishopPhase = 1
	RookPhase   = 2
	QueenPhase  = 4
	TotalPhase  = PawnPhase*16 + KnightPhase*4 + BishopPhase*4 + RookPhase*4 + QueenPhase*2
)

// Piece-square tables, white oriented with a1 first
var psqtMG = [7][64]int{
	rules.PieceTypePawn: {
		0, 0, 0, 0, 0, 0, 0, 0,
		-46, -41, -42, -39, -40, -12, 1, -21,
		-51, -52, -45, -45, -37, -37, -20, -30,
		-46, -40, -33, -33, -23, -26, -15, -30,
		-36, -27, -27, -11, 1, 2, -4, -21,
		-33, -6, 7, 13, 27, 57, 19, -11,
		57, 54, 55, 54, 46, 32, 4, 9,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	rules.PieceTypeKnight: {
		-24, -28, -46, -30, -25, -21, -27, -40,
		-35, -32, -18, -10, -14, -12, -20, -18,
		-25, -8, -4, 6, 7, -1, -1, -17,
		-14, -1, 8, 5, 13, 10, 26, -1,
		-5, 8, 30, 35, 24, 43, 19, 22,
		-21, 12, 40, 49, 67, 64, 37, 14,
		-17, -12, 20, 33, 33, 37, -8, 3,
		-61, -6, -12, -2, 1, -6, -1, -16,
	},
	rules.PieceTypeBishop: {
		4, -2, -15, -21, -18, -8, -8, 2,
		4, 8, 11, -2, 1, 5, 20, 11,
		-2, 11, 8, 13, 10, 8, 10, 13,
		-7, 10, 15, 21, 26, 11, 10, 7,
		-4, 22, 24, 49, 34, 37, 20, 6,
		4, 18, 36, 36, 47, 55, 37, 24,
		-22, 6, 3, -7, 4, 14, -3, 8,
		-27, -8, -13, -12, -8, -21, 1, -10,
	},
	rules.PieceTypeRook: {
		-46, -41, -37, -34, -36, -40, -19, -42,
		-71, -45, -44, -43, -47, -37, -25, -51,
		-60, -46, -50, -44, -47, -48, -21, -38,
		-49, -45, -43, -35, -37, -34, -13, -29,
		-33, -21, -11, 6, 0, 7, 8, 2,
		-22, 10, 4, 25, 41, 38, 44, 20,
		-3, -5, 16, 28, 31, 37, 9, 30,
		23, 22, 19, 24, 23, 20, 21, 34,
	},
	rules.PieceTypeQueen: {
		-6, -17, -12, -3, -6, -28, -27, -12,
		-11, -4, 2, -2, -1, 7, 8, -7,
		-8, -1, -2, -4, -4, -1, 8, 7,
		-5, -3, -2, -6, -6, 10, 7, 16,
		-11, -6, -2, -1, 12, 22, 26, 26,
		-13, -6, -1, 14, 36, 58, 71, 42,
		-11, -40, 5, 5, 20, 44, -2, 27,
		0, 16, 21, 29, 36, 38, 25, 36,
	},
	rules.PieceTypeKing: {
		-4, 36, -1, -69, -23, -74, 19, 26,
		12, 0, -18, -53, -33, -39, 7, 25,
		-6, -4, -3, -11, -6, -8, 4, -15,
		-1, 8, 16, 10, 15, 12, 23, -9,
		0, 9, 16, 10, 13, 15, 15, -8,
		1, 11, 12, 9, 8, 14, 12, 0,
		-2, 6, 6, 2, 3, 4, 3, -2,
		-1, 0, 0, 2, 0, 0, 0, -2,
	},
}
var psqtEG = [7][64]int{
	rules.PieceTypePawn: {
		0, 0, 0, 0, 0, 0, 0, 0,
		-9, -8, -4, -2, 7, 2, -14, -29,
		-16, -17, -13, -12, -9, -12, -26, -29,
		-8, -10, -19, -18, -19, -17, -22, -21,
		3, -2, -5, -23, -16, -14, -10, -12,
		21, 22, 21, 22, 22, 11, 25, 17,
		75, 69, 58, 48, 43, 43, 55, 63,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	rules.PieceTypeKnight: {
		-29, -60, -26, -18, -20, -28, -48, -30,
		-28, -13, -13, -6, -4, -16, -18, -31,
		-38, -3, 6, 19, 18, 5, -2, -33,
		-15, 11, 32, 36, 34, 35, 16, -9,
		-11, 14, 28, 43, 48, 36, 28, -1,
		-20, 6, 24, 26, 20, 31, 12, -11,
		-25, -12, 1, 21, 19, -3, -9, -16,
		-41, -11, 2, 0, 1, 4, -4, -17,
	},
	rules.PieceTypeBishop: {
		-28, -16, -38, -14, -19, -24, -21, -20,
		-10, -20, -12, -4, -5, -18, -18, -33,
		-12, -1, 7, 10, 8, 3, -11, -11,
		-5, 6, 17, 18, 15, 14, 4, -10,
		0, 11, 12, 17, 24, 15, 19, 3,
		-5, 8, 11, 11, 13, 19, 12, 3,
		-7, 7, 10, 11, 12, 10, 12, -6,
		1, 5, 5, 8, 4, 0, 2, 2,
	},
	rules.PieceTypeRook: {
		-10, 0, 5, 5, 3, 3, -1, -18,
		-8, -10, -3, -6, -5, -11, -14, -10,
		-2, 7, 8, 5, 4, 3, -1, -8,
		13, 25, 26, 22, 20, 18, 12, 6,
		25, 27, 30, 26, 23, 20, 16, 16,
		34, 24, 32, 25, 17, 24, 14, 18,
		36, 42, 40, 41, 40, 23, 28, 22,
		32, 37, 40, 37, 38, 42, 39, 37,
	},
	rules.PieceTypeQueen: {
		-25, -35, -41, -48, -50, -39, -27, -9,
		-26, -24, -44, -27, -36, -62, -57, -17,
		-22, -17, 5, -10, -11, 1, -19, -14,
		-19, 5, 6, 38, 32, 30, 17, 20,
		-11, 14, 13, 42, 52, 57, 49, 33,
		-1, 3, 20, 29, 45, 56, 40, 38,
		7, 31, 25, 36, 57, 44, 28, 25,
		14, 26, 29, 38, 44, 43, 31, 33,
	},
	rules.PieceTypeKing: {
		-37, -29, -20, -26, -54, -14, -35, -78,
		-15, -9, -3, 4, -2, 1, -15, -35,
		-16, -3, 7, 16, 13, 6, -8, -18,
		-16, 8, 21, 28, 25, 19, 5, -18,
		-2, 22, 29, 30, 29, 26, 20, -5,
		1, 26, 25, 19, 16, 32, 31, -1,
		-12, 14, 11, 3, 5, 10, 20, -9,
		-17, -12, -6, -1, -6, -6, -6, -14,
	},
}

// Piece base values (midgame/endgame) and per-square mobility values
var pieceValueMG = [7]int{
	rules.PieceTypeKing: 0, rules.PieceTypePawn: 88, rules.PieceTypeKnight: 316, rules.PieceTypeBishop: 331, rules.PieceTypeRook: 494, rules.PieceTypeQueen: 993,
}
var pieceValueEG = [7]int{
	rules.PieceTypeKing: 0, rules.PieceTypePawn: 111, rules.PieceTypeKnight: 305, rules.PieceTypeBishop: 333, rules.PieceTypeRook: 535, rules.PieceTypeQueen: 963,
}
var mobilityValueMG = [7]int{
	rules.PieceTypeKing: 0, rules.PieceTypePawn: 0, rules.PieceTypeKnight: 2, rules.PieceTypeBishop: 3, rules.PieceTypeRook: 2, rules.PieceTypeQueen: 1,
}
var mobilityValueEG = [7]int{
	rules.PieceTypeKing: 0, rules.PieceTypePawn: 0, rules.PieceTypeKnight: 3, rules.PieceTypeBishop: 2, rules.PieceTypeRook: 4, rules.PieceTypeQueen: 4,
}

// Passed pawn bonuses by square, white oriented
var passedPawnMG = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	-11, -10, -11, -11, -1, -6, 16, 14,
	-2, -4, -17, -17, -7, -6, -5, 15,
	15, 6, -8, -5, -8, -8, -2, 6,
	34, 33, 25, 17, 11, 8, 15, 17,
	68, 52, 41, 33, 24, 24, 19, 17,
	56, 53, 55, 54, 46, 31, 4, 9,
	0, 0, 0, 0, 0, 0, 0, 0,
}
var passedPawnEG = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	18, 16, 10, 9, 4, 0, 8, 15,
	13, 22, 12, 10, 9, 8, 25, 13,
	32, 36, 29, 24, 23, 30, 44, 33,
	60, 54, 40, 41, 35, 37, 48, 45,
	102, 86, 64, 41, 33, 50, 57, 78,
	68, 66, 56, 46, 43, 42, 55, 62,
	0, 0, 0, 0, 0, 0, 0, 0,
}
